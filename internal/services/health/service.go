package health

// Service encapsulates health-related checks.
type Service struct {
	dbConnected bool
	storeType   string
}

// NewService constructs a new health service.
func NewService(dbConnected bool, storeType string) *Service {
	return &Service{dbConnected: dbConnected, storeType: storeType}
}

// Status returns a simple health payload.
func (s *Service) Status() map[string]any {
	return map[string]any{
		"ok":    true,
		"db":    s.dbConnected,
		"store": s.storeType,
	}
}
