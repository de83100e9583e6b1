package domain

import "time"

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionConfirmed TransactionStatus = "confirmed"
	TransactionRejected  TransactionStatus = "rejected"
)

// Terminal reports whether no further transition is expected from s.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionConfirmed || s == TransactionRejected
}

const TransactionTypeDeploy = "deploy"

// TransactionRequest is a blockchain action awaiting user approval. Only
// Status changes after creation.
type TransactionRequest struct {
	ID           int64             `json:"id"`
	Type         string            `json:"type"`
	Status       TransactionStatus `json:"status"`
	Details      string            `json:"details"`
	GasLimit     string            `json:"gasLimit"`
	GasPrice     string            `json:"gasPrice"`
	Network      string            `json:"network"`
	ContractName string            `json:"contractName"`
	ProjectID    int64             `json:"projectId"`
	Timestamp    time.Time         `json:"timestamp"`
}

type TransactionInput struct {
	Type         string
	Details      string
	GasLimit     string
	GasPrice     string
	Network      string
	ContractName string
	ProjectID    int64
}
