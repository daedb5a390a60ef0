package model

// All lists every table this service migrates. Order matters for foreign keys.
func All() []interface{} {
	return []interface{}{
		&Conversation{},
		&Message{},
		&DocumentChunk{},
	}
}
