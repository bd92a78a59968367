package exposure

import (
	"fmt"
	"strings"

	"exposureshield/pkg/domain"
)

// GenericAdvice is returned when no source reported evidence.
var GenericAdvice = []string{ //nolint: gochecknoglobals
	"Turn on two-factor authentication for your email account.",
	"Replace weak or reused passwords.",
	"Use a password manager to keep a unique password per site.",
}

const retryLaterAdvice = "The breach directory is busy right now, so this result is incomplete. Please try again later."

// advise builds the advice of v in a fixed order: password, local dataset,
// remote directory, then the generic list when nothing specific was found.
func advise(v domain.ExposureVerdict, dataset, remote []domain.EmailExposureRecord) []string {
	var advice []string

	if v.PasswordHits > 0 {
		advice = append(advice, fmt.Sprintf(
			"This password appears %d %s in known breaches. Stop using it and choose a new, unique password.",
			v.PasswordHits, plural(v.PasswordHits, "time", "times")))
	}
	if len(dataset) > 0 {
		advice = append(advice, fmt.Sprintf(
			"This email appears in our breach dataset (%s). Change the passwords of these accounts.",
			names(dataset)))
	}
	if len(remote) > 0 {
		advice = append(advice, fmt.Sprintf(
			"This email was found in %d public %s (%s). Change those passwords and enable two-factor authentication.",
			len(remote), plural(uint(len(remote)), "breach", "breaches"), names(remote)))
	}
	if v.Exposed == nil {
		advice = append(advice, retryLaterAdvice)
	}
	if v.PasswordHits == 0 && len(dataset) == 0 && len(remote) == 0 {
		advice = append(advice, GenericAdvice...)
	}

	return advice
}

func names(records []domain.EmailExposureRecord) string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.SourceName]; ok || r.SourceName == "" {
			continue
		}
		seen[r.SourceName] = struct{}{}
		out = append(out, r.SourceName)
	}
	if len(out) == 0 {
		return "unnamed source"
	}

	return strings.Join(out, ", ")
}

func plural(n uint, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
