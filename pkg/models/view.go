package models

import "math/big"

// SendView is a send intent joined with its reconciled status and the
// evidence that produced it.
type SendView struct {
	Intent   SendIntent
	Status   Status
	Evidence *TransactionEvidence
	// Data is the expected call payload for token sends, nil for native.
	Data []byte
	// Value is the expected native value for native sends, nil for token.
	Value *big.Int
}

// PayoutView carries both phase results of a payout intent. A nil
// ApproveStatus means the approve phase is not applicable (native asset);
// a nil DisperseStatus means the disperse phase was not evaluated because
// an applicable approve phase has not succeeded yet.
type PayoutView struct {
	Intent           PayoutIntent
	ApproveStatus    *Status
	ApproveEvidence  *TransactionEvidence
	DisperseStatus   *Status
	DisperseEvidence *TransactionEvidence
}

// DeployView is a deployment intent with its reconciled status.
type DeployView struct {
	Intent   DeployIntent
	Status   Status
	Evidence *TransactionEvidence
}

// CallView is a function-call intent with its reconciled status.
type CallView struct {
	Intent   CallIntent
	Status   Status
	Evidence *TransactionEvidence
}

// BalanceProofView is a balance-proof intent with its reconciled status.
// Balance is nil only while no actual wallet is attached.
type BalanceProofView struct {
	Intent  BalanceProofIntent
	Status  Status
	Balance *BalanceEvidence
}
