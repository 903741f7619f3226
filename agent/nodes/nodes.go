package enginenode

// Node names of the turn graph.
const (
	NodeValidateRequest  = "validate_request"
	NodeGenerate         = "generate_utterance"
	NodeValidate         = "validate_utterance"
	NodeRegenerate       = "regenerate_utterance"
	NodeDrainQuestions   = "drain_questions"
	NodeSendTurn         = "send_turn"
	NodeRecordExchange   = "record_exchange"
	NodeCompletionBefore = "check_completion_before"
	NodeTrackItems       = "track_items"
	NodeCompletionAfter  = "check_completion_after"
	NodeNoteQuestion     = "note_question"
	NodeNextState        = "next_state"
)
