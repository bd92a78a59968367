package exposure

import (
	"context"

	"exposureshield/pkg/domain"
)

//go:generate mockgen -package mockexposure -source=interface.go -destination=mock/mockexposure.go *
type Aggregator interface {
	Evaluate(ctx context.Context, query domain.ExposureQuery) (domain.ExposureVerdict, error)
}
