// Package consulreg registers and deregisters this service instance with
// Consul. The scheduling service has no downstream service to discover
// through Consul (machines and orders arrive in the request body, not
// from another registered service), so only self-registration is kept.
package consulreg

import (
	"fmt"
	"net"
	"strconv"

	"github.com/dante-gpu/production-scheduler/internal/config"
	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// Connect establishes a connection to the Consul agent.
func Connect(consulAddress string, logger *zap.Logger) (*consulapi.Client, error) {
	logger.Info("Attempting to connect to Consul agent", zap.String("address", consulAddress))
	clientConfig := consulapi.DefaultConfig()
	clientConfig.Address = consulAddress
	client, err := consulapi.NewClient(clientConfig)
	if err != nil {
		logger.Error("Failed to create Consul client", zap.Error(err))
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	if _, err = client.Agent().Self(); err != nil {
		logger.Error("Failed to ping Consul agent", zap.Error(err))
		return nil, fmt.Errorf("failed to connect/ping consul agent: %w", err)
	}
	logger.Info("Successfully connected to Consul agent", zap.String("address", consulAddress))
	return client, nil
}

// RegisterService registers this service instance with Consul.
func RegisterService(consulClient *consulapi.Client, cfg *config.Config, serviceID string, logger *zap.Logger) error {
	host, portStr, err := net.SplitHostPort(cfg.Port)
	if err != nil {
		portStr = cfg.Port
		if len(portStr) > 0 && portStr[0] == ':' {
			portStr = portStr[1:]
		}
		host = ""
		logger.Debug("Port config does not include host, Consul will use agent default address", zap.String("port_config", cfg.Port))
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Error("Invalid port number in config", zap.String("port_str", portStr), zap.Error(err))
		return fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}

	address := host

	registration := &consulapi.AgentServiceRegistration{
		ID:      serviceID,
		Name:    cfg.ServiceName,
		Port:    port,
		Address: address,
		Tags:    cfg.ServiceTags,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", checkAddress(address, logger), port, cfg.HealthCheckPath),
			Interval:                       cfg.HealthCheckInterval.String(),
			Timeout:                        cfg.HealthCheckTimeout.String(),
			DeregisterCriticalServiceAfter: "1m",
			Notes:                          "Health check for the production scheduling service",
		},
	}

	logger.Info("Attempting to register service with Consul",
		zap.String("service_id", serviceID),
		zap.String("service_name", cfg.ServiceName),
		zap.String("address", address),
		zap.Int("port", port),
		zap.String("check_url", registration.Check.HTTP),
	)

	if err := consulClient.Agent().ServiceRegister(registration); err != nil {
		logger.Error("Failed to register service with Consul", zap.Error(err))
		return fmt.Errorf("failed to register service '%s' with Consul: %w", cfg.ServiceName, err)
	}
	return nil
}

// checkAddress determines the address to use for the Consul health check
// URL. If the service address is unspecified, fall back to localhost.
func checkAddress(serviceAddress string, logger *zap.Logger) string {
	if serviceAddress == "" || serviceAddress == "0.0.0.0" || serviceAddress == "::" {
		logger.Debug("Service address for health check is unspecified, using 127.0.0.1")
		return "127.0.0.1"
	}
	return serviceAddress
}

// DeregisterService deregisters the service from Consul, typically during
// graceful shutdown.
func DeregisterService(consulClient *consulapi.Client, serviceID string, logger *zap.Logger) error {
	logger.Info("Deregistering service from Consul", zap.String("service_id", serviceID))
	if err := consulClient.Agent().ServiceDeregister(serviceID); err != nil {
		logger.Error("Failed to deregister service from Consul", zap.String("service_id", serviceID), zap.Error(err))
		return fmt.Errorf("failed to deregister service '%s': %w", serviceID, err)
	}
	logger.Info("Successfully deregistered service from Consul", zap.String("service_id", serviceID))
	return nil
}
