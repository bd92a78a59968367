package domain

import "time"

// ExposureQuery is the input of an exposure evaluation. Password must never be
// persisted or logged; it only lives long enough to be hashed.
type ExposureQuery struct {
	Email    string
	Password string
}

// PasswordExposure is the answer of the password corpus. A zero count means
// the password is absent from the corpus, which is not proof of safety.
type PasswordExposure struct {
	OccurrenceCount uint
}

// EmailExposureRecord describes one breach an email address appears in. Both
// the local dataset and the remote directory produce this shape.
type EmailExposureRecord struct {
	// SourceName is the breach name, e.g. "Deezer".
	SourceName string `json:"sourceName"`
	// Domain is the breached site's domain, possibly empty.
	Domain string `json:"domain"`
	// BreachDate is the day the breach happened when known.
	BreachDate *time.Time `json:"breachDate,omitempty"`
	// DataClasses lists the kinds of data exposed, in the order the source gave them.
	DataClasses []string `json:"dataClasses"`
}

// Source names one of the independent evidence sources.
type Source string

const (
	// SourcePasswordCorpus is the k-anonymity password range lookup.
	SourcePasswordCorpus Source = "password_corpus"
	// SourceLocalDataset is the curated in-process breach table.
	SourceLocalDataset Source = "local_dataset"
	// SourceRemoteDirectory is the remote breach directory.
	SourceRemoteDirectory Source = "remote_directory"
)

// SourceStatus is the outcome of asking one evidence source.
type SourceStatus string

const (
	// SourceStatusFound means the source answered and reported evidence.
	SourceStatusFound SourceStatus = "found"
	// SourceStatusClear means the source answered and reported nothing.
	SourceStatusClear SourceStatus = "clear"
	// SourceStatusUnavailable means the source could not answer.
	SourceStatusUnavailable SourceStatus = "unavailable"
	// SourceStatusRateLimited means the source refused because of its own rate limit.
	SourceStatusRateLimited SourceStatus = "rate_limited"
	// SourceStatusMisconfigured means the source rejected our credentials.
	SourceStatusMisconfigured SourceStatus = "misconfigured"
	// SourceStatusDisabled means the source is switched off by configuration.
	SourceStatusDisabled SourceStatus = "disabled"
)

// Answered reports whether the source produced a trustworthy answer.
func (s SourceStatus) Answered() bool {
	return s == SourceStatusFound || s == SourceStatusClear
}

// VerdictStatus summarizes an ExposureVerdict for logs and storage.
type VerdictStatus string

const (
	// VerdictExposed means at least one source reported evidence.
	VerdictExposed VerdictStatus = "exposed"
	// VerdictClear means no source reported evidence and none was rate limited.
	VerdictClear VerdictStatus = "clear"
	// VerdictInconclusive means there was no evidence but the remote directory
	// could not be consulted because it rate limited us.
	VerdictInconclusive VerdictStatus = "inconclusive"
)

// ExposureVerdict merges the evidence of all sources.
type ExposureVerdict struct {
	// Exposed is true iff PasswordHits > 0 or EmailRecords is non-empty. It is
	// nil when the answer is unknown, never false in that case.
	Exposed *bool
	// PasswordHits is the password's occurrence count in the corpus.
	PasswordHits uint
	// EmailRecords lists local dataset records followed by remote directory records.
	EmailRecords []EmailExposureRecord
	// Advice is ordered: password, dataset, directory, then generic advice.
	Advice []string
	// Sources holds the outcome of every source that was asked.
	Sources map[Source]SourceStatus
	// RetryAfter is set when the verdict is inconclusive and the directory
	// told us how long to wait.
	RetryAfter time.Duration
}

// Status returns the summary of v.
func (v ExposureVerdict) Status() VerdictStatus {
	switch {
	case v.Exposed == nil:
		return VerdictInconclusive
	case *v.Exposed:
		return VerdictExposed
	default:
		return VerdictClear
	}
}
