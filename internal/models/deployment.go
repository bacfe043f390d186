package models

// DeploymentResult is the outcome of one create-token attempt.
// MintAddress and PumpURL are set even on most failures.
type DeploymentResult struct {
	Success     bool   `json:"success"`
	MintAddress string `json:"mintAddress,omitempty"`
	PumpURL     string `json:"pumpUrl,omitempty"`
	Signature   string `json:"signature,omitempty"`
	Error       string `json:"error,omitempty"`
	// Cause classifies a failure for errors.Is; never serialized
	Cause error `json:"-"`
}
