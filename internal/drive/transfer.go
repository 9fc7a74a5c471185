package drive

// TransferState is a state of a single ownership transfer attempt.
type TransferState string

// Transfer states, in the order a successful attempt moves through them.
const (
	StateRequested          TransferState = "requested"
	StateOwnerVerified      TransferState = "owner_verified"
	StateWriterGranted      TransferState = "writer_granted"
	StatePermissionLocated  TransferState = "permission_located"
	StatePendingTransferSet TransferState = "pending_transfer_set"
	StateFailed             TransferState = "failed"
)

// TransferStep names the action that moves a transfer to its next state.
type TransferStep string

// Transfer steps.
const (
	StepVerifyOwner      TransferStep = "verify_owner"
	StepGrantWriter      TransferStep = "grant_writer"
	StepLocatePermission TransferStep = "locate_permission"
	StepSetPendingOwner  TransferStep = "set_pending_owner"
)

const (
	// RoleWriter is the permission role granted to the receiver.
	RoleWriter = "writer"

	// PermissionTypeUser is the grantee type for individual accounts.
	PermissionTypeUser = "user"

	// TransferStatusPendingOwner is the status reported for an initiated transfer.
	TransferStatusPendingOwner = "pending_owner"

	// TransferNote tells the caller what still has to happen.
	TransferNote = "Receiver needs to accept ownership in their Google Drive"
)

// transfer carries the data collected while a transfer attempt runs.
// It lives for one TransferOwnership call.
type transfer struct {
	fileID   string
	receiver string
	caller   string

	state    TransferState
	fileName string

	// receiverHadAccess is true when the receiver already held a permission
	// before the grant step, in which case the grant is never rolled back.
	receiverHadAccess bool

	grantedPermissionID string
	permissionID        string
}

func newTransfer(fileID, receiver, caller string) *transfer {
	return &transfer{
		fileID:   fileID,
		receiver: receiver,
		caller:   caller,
		state:    StateRequested,
	}
}

// needsRollback reports whether a failure now leaves behind a permission
// that this attempt created.
func (t *transfer) needsRollback() bool {
	return t.grantedPermissionID != "" && !t.receiverHadAccess && t.state != StatePendingTransferSet
}

func (t *transfer) result() *TransferResult {
	return &TransferResult{
		File:     t.fileName,
		Receiver: t.receiver,
		Status:   TransferStatusPendingOwner,
		Note:     TransferNote,
	}
}
