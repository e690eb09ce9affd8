package config

// APIConfig holds the read-only inspection API configuration
type APIConfig struct {
	Enabled        bool
	Addr           string
	JWTSecret      string
	AllowedOrigins []string
}

// LoadAPIConfig loads API configuration
func LoadAPIConfig() APIConfig {
	origins := parseCSV(GetSetting("api_allowed_origins", "API_ALLOWED_ORIGINS", ""))
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return APIConfig{
		Enabled:        getBoolSetting("enable_feedback_api", "ENABLE_FEEDBACK_API", false),
		Addr:           GetSetting("api_addr", "API_ADDR", ":8080"),
		JWTSecret:      GetSetting("api_jwt_secret", "API_JWT_SECRET", ""),
		AllowedOrigins: origins,
	}
}
