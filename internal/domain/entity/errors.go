package entity

import "errors"

var (
	// Assistant errors
	ErrInvalidAgentID   = errors.New("invalid assistant id")
	ErrInvalidAgentName = errors.New("invalid assistant name")

	// Adapter descriptor errors
	ErrSkillAlreadyExists = errors.New("adapter descriptor already registered")
	ErrSkillNotFound      = errors.New("adapter descriptor not found")
	ErrInvalidSkillID     = errors.New("invalid adapter descriptor id")
	ErrInvalidSkillName   = errors.New("invalid adapter descriptor name")

	// Message errors
	ErrInvalidMessageID      = errors.New("invalid message id")
	ErrInvalidConversationID = errors.New("invalid room id")
	ErrEnvelopeMismatch      = errors.New("ciphertext and nonce must both be present or both absent")

	// Room errors
	ErrInvalidRoomID       = errors.New("invalid room id")
	ErrInvalidRoomKey      = errors.New("room key must be 32 bytes")
	ErrMemberAlreadyInRoom = errors.New("member already belongs to room")
	ErrMemberNotInRoom     = errors.New("member does not belong to room")

	// Intent / task errors
	ErrMissingSlotsRequireQuestion = errors.New("missing_slots requires a non-empty clarifying_question")
	ErrTaskStateInconsistent       = errors.New("task status must be ready iff missing_slots is empty")

	// Workflow errors
	ErrWorkflowNoSteps       = errors.New("workflow must have at least one step")
	ErrWorkflowPolicyMissing = errors.New("workflow with a payments.withdraw step requires a policy")
	ErrDuplicateStepID       = errors.New("duplicate step id")
)
