package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	id "portrait/pkg/domain"
)

// DefaultMaxDelegates bounds the active delegate set per owner unless an
// administrator adjusts it at runtime.
const DefaultMaxDelegates = 5

// Server captures process-level configuration. Runtime-adjustable registry
// parameters live in Params so the admin surface can mutate them safely.
type Server struct {
	Addr          string
	JWTSigningKey string

	// ContractOwner is the global administrator. Only this address may use
	// the admin surface or register during the controlled period.
	ContractOwner id.Address

	// ControlledRegistration restricts identity issuance to ContractOwner
	// while enabled.
	ControlledRegistration bool

	PostgresDSN  string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("PORTRAIT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("PORTRAIT_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	owner, err := id.ParseAddress(os.Getenv("PORTRAIT_CONTRACT_OWNER"))
	if err != nil {
		owner = id.ZeroAddress
	}

	var brokers []string
	if raw := os.Getenv("PORTRAIT_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("PORTRAIT_KAFKA_TOPIC")
	if topic == "" {
		topic = "portrait.registry.events"
	}

	return Server{
		Addr:                   addr,
		JWTSigningKey:          jwtSigningKey,
		ContractOwner:          owner,
		ControlledRegistration: os.Getenv("PORTRAIT_CONTROLLED_REGISTRATION") == "true",
		PostgresDSN:            os.Getenv("PORTRAIT_POSTGRES_DSN"),
		RedisURL:               os.Getenv("PORTRAIT_REDIS_URL"),
		KafkaBrokers:           brokers,
		KafkaTopic:             topic,
	}
}

// Params holds registry parameters adjustable through the admin surface.
// Reads vastly outnumber writes, hence the RWMutex.
type Params struct {
	mu              sync.RWMutex
	maxDelegates    int
	serviceDelegate id.Address
}

// NewParams builds runtime parameters seeded from the environment.
func NewParams() *Params {
	maxDelegates := DefaultMaxDelegates
	if raw := os.Getenv("PORTRAIT_MAX_DELEGATES"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			maxDelegates = n
		}
	}
	serviceDelegate, err := id.ParseAddress(os.Getenv("PORTRAIT_SERVICE_DELEGATE"))
	if err != nil {
		serviceDelegate = id.ZeroAddress
	}
	return &Params{
		maxDelegates:    maxDelegates,
		serviceDelegate: serviceDelegate,
	}
}

// MaxDelegates returns the per-owner active delegate bound.
func (p *Params) MaxDelegates() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxDelegates
}

// SetMaxDelegates adjusts the per-owner active delegate bound.
func (p *Params) SetMaxDelegates(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxDelegates = n
}

// ServiceDelegate returns the gas-sponsoring service address, which may
// self-assign as a delegate during registration.
func (p *Params) ServiceDelegate() id.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.serviceDelegate
}

// SetServiceDelegate adjusts the gas-sponsoring service address.
func (p *Params) SetServiceDelegate(addr id.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.serviceDelegate = addr
}

// ShutdownTimeout bounds graceful HTTP shutdown.
var ShutdownTimeout = 10 * time.Second
