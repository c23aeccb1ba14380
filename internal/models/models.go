package models

// All lists every persistent model in migration order.
func All() []any {
	return []any{
		&User{},
		&Session{},
		&Category{},
		&Candidate{},
		&Vote{},
		&EmailVerification{},
		&DeviceRegistration{},
		&AdminLog{},
		&AppSetting{},
		&CacheEntry{},
	}
}
