package constant

// Inbound socket events.
const (
	EventJoinConversation           = "join_conversation"
	EventLeaveConversation          = "leave_conversation"
	EventAsk                        = "ask"
	EventTyping                     = "typing"
	EventMessageStatus              = "message_status"
	EventRequestConversationHistory = "request_conversation_history"
)

// Outbound socket events.
const (
	EventConnected            = "connected"
	EventConversationJoined   = "conversation_joined"
	EventConversationLeft     = "conversation_left"
	EventAck                  = "ack"
	EventMessage              = "message"
	EventAskResponse          = "ask_response"
	EventError                = "error"
	EventUserTyping           = "user_typing"
	EventUserStatus           = "user_status"
	EventMessageStatusUpdated = "message_status_updated"
	EventConversationHistory  = "conversation_history"
)

// Presence values carried by user_status.
const (
	PresenceOnline  = "online"
	PresenceInChat  = "in_chat"
	PresenceOffline = "offline"
)

const (
	AckStatusProcessing = "processing"

	TurnStatusCompleted = "completed"
	TurnStatusFailed    = "failed"

	DefaultConversationTitle = "New Chat"
	MaxConversationTitle     = 200
	MaxQuestionRunes         = 4000
	DerivedTitleRunes        = 50
)

// Log modules.
const (
	ModuleChatPipeline    = "CHAT_PIPELINE"
	ModuleSessionRegistry = "SESSION_REGISTRY"
	ModuleConversation    = "CONVERSATION"
	ModuleRetrieval       = "RETRIEVAL"
	ModuleGeneration      = "GENERATION"
	ModuleSuggestion      = "SUGGESTION"
	ModuleTurnEvents      = "TURN_EVENTS"
	ModuleSocket          = "SOCKET"
)
