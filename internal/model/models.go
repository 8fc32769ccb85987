package model

// AllModels returns every model registered for AutoMigrate
func AllModels() []interface{} {
	return []interface{}{
		&Tenant{},
		&TenantQuota{},
		&ChannelResource{},
		&ProtectionEntry{},
		&Conversation{},
		&Message{},
		&KnowledgeDocument{},
		&AgentConfig{},
		&PromptTemplate{},
		&AuditLog{},
		&UsageLog{},
	}
}
