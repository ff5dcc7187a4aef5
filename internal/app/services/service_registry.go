package services

import (
	"fmt"
)

// ServiceRegistry facilitates runtime service discovery and dependency injection
// after the registration phase completes.
type ServiceRegistry struct {
	services map[string]ManagedService
}

// NewServiceRegistry creates a new service registry
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]ManagedService),
	}
}

func (r *ServiceRegistry) Register(name string, service ManagedService) {
	r.services[name] = service
}

func (r *ServiceRegistry) Get(name string) (ManagedService, error) {
	service, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service %s not found", name)
	}
	return service, nil
}

func (r *ServiceRegistry) GetServer() (*ServerService, error) {
	service, err := r.Get("server")
	if err != nil {
		return nil, err
	}
	server, ok := service.(*ServerService)
	if !ok {
		return nil, fmt.Errorf("service server is not a ServerService")
	}
	return server, nil
}

func (r *ServiceRegistry) GetHealth() (*HealthService, error) {
	service, err := r.Get("health")
	if err != nil {
		return nil, err
	}
	health, ok := service.(*HealthService)
	if !ok {
		return nil, fmt.Errorf("service health is not a HealthService")
	}
	return health, nil
}
