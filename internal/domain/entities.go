package domain

// ExtractedEntities holds pattern-extracted indicators in order of appearance.
type ExtractedEntities struct {
	UPIIDs       []string `json:"upi_ids"`
	URLs         []string `json:"urls"`
	BankAccounts []string `json:"bank_accounts"`
	IFSCCodes    []string `json:"ifsc_codes"`
}

// Empty reports whether no category holds a value.
func (e ExtractedEntities) Empty() bool {
	return len(e.UPIIDs) == 0 && len(e.URLs) == 0 && len(e.BankAccounts) == 0 && len(e.IFSCCodes) == 0
}

// Normalized replaces nil slices with empty ones so JSON renders arrays.
func (e ExtractedEntities) Normalized() ExtractedEntities {
	return ExtractedEntities{
		UPIIDs:       nonNil(e.UPIIDs),
		URLs:         nonNil(e.URLs),
		BankAccounts: nonNil(e.BankAccounts),
		IFSCCodes:    nonNil(e.IFSCCodes),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SignalKind is a class of scam indicator found by a classifier.
type SignalKind string

const (
	SignalUrgency      SignalKind = "financial_urgency"
	SignalReward       SignalKind = "reward_lure"
	SignalCredentials  SignalKind = "credential_request"
	SignalPhishingLink SignalKind = "phishing_link"
	SignalPayment      SignalKind = "payment_request"
	SignalVerification SignalKind = "kyc_verification"
	SignalKeyword      SignalKind = "keyword"
)

// Signal is a single indicator together with the text that triggered it.
type Signal struct {
	Kind    SignalKind
	Trigger string
}

// Assessment is the per-turn scam verdict. It gates the pipeline and is not persisted.
type Assessment struct {
	IsScam        bool
	Justification string
	Signals       []Signal
	Category      string
}
