package cluster

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/google/uuid"
	consul "github.com/hashicorp/consul/api"

	"bomberstudent/pkg/logger"
)

// Registration describes this instance to the consul agent
type Registration struct {
	ConsulAddr  string // agent address; empty uses CONSUL_HTTP_ADDR or the client default
	ServiceName string
	Port        int
	HealthAddr  string // host:port of the health endpoint
}

// ServiceID returns "<name>-<uuid>", unique per process
func ServiceID(name string) string {
	return fmt.Sprintf("%s-%s", name, uuid.NewString())
}

// Register registers the service with an HTTP check on the health endpoint.
// The returned function deregisters it.
func Register(r Registration, log *logger.Logger) (func() error, error) {
	config := consul.DefaultConfig()
	if r.ConsulAddr != "" {
		config.Address = r.ConsulAddr
	}
	client, err := consul.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	serviceID := ServiceID(r.ServiceName)
	registration := &consul.AgentServiceRegistration{
		ID:   serviceID,
		Name: r.ServiceName,
		Port: r.Port,
		Check: &consul.AgentServiceCheck{
			HTTP:                           healthURL(r.HealthAddr),
			Timeout:                        "5s",
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	agent := client.Agent()
	if err := agent.ServiceRegister(registration); err != nil {
		return nil, fmt.Errorf("failed to register service in consul: %w", err)
	}
	log.Info("Service '%s' registered in consul with ID %s", r.ServiceName, serviceID)

	return func() error {
		if err := agent.ServiceDeregister(serviceID); err != nil {
			return fmt.Errorf("failed to deregister %s: %w", serviceID, err)
		}
		log.Info("Service %s deregistered from consul", serviceID)
		return nil
	}, nil
}

// healthURL builds the check URL. Wildcard hosts are replaced by the hostname
// so the agent can reach the endpoint.
func healthURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, "80"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = os.Getenv("HOSTNAME")
		if host == "" {
			host, _ = os.Hostname()
		}
	}
	if _, err := strconv.Atoi(port); err != nil {
		port = "80"
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, port), HealthPath)
}
