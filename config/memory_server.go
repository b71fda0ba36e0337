package config

import (
	"context"
	"fmt"
	"net"
	"time"

	sqle "github.com/dolthub/go-mysql-server"
	"github.com/dolthub/go-mysql-server/memory"
	"github.com/dolthub/go-mysql-server/server"
	"github.com/dolthub/go-mysql-server/sql"

	"dataprofileservice/pkg/logger"
)

// MemoryServer is an in-process MySQL-protocol server backed by memory tables.
// Data does not survive a restart.
type MemoryServer struct {
	server   *server.Server
	database string
	Port     int
	cancel   context.CancelFunc
}

// StartMemoryServer boots the embedded engine on a free localhost port and
// waits until it accepts connections.
func StartMemoryServer(ctx context.Context, database string) (*MemoryServer, error) {
	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("failed to get free port: %w", err)
	}

	db := memory.NewDatabase(database)
	provider := memory.NewDBProvider(db)
	engine := sqle.NewDefault(provider)

	cfg := server.Config{
		Protocol: "tcp",
		Address:  fmt.Sprintf("localhost:%d", port),
	}
	s, err := server.NewServer(cfg, engine, sql.NewContext, memory.NewSessionBuilder(provider), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	serverCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := s.Start(); err != nil {
			logger.Errorf("Memory database server stopped: %v", err)
		}
	}()
	go func() {
		<-serverCtx.Done()
		if err := s.Close(); err != nil {
			logger.Warnf("Failed to close memory database server: %v", err)
		}
	}()

	readyCtx, readyCancel := context.WithTimeout(ctx, 5*time.Second)
	defer readyCancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-readyCtx.Done():
			cancel()
			return nil, fmt.Errorf("memory database failed to start: %w", readyCtx.Err())
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", cfg.Address, 100*time.Millisecond)
			if err != nil {
				continue
			}
			conn.Close()
			logger.Infof("Started memory database %s on port %d", database, port)
			return &MemoryServer{server: s, database: database, Port: port, cancel: cancel}, nil
		}
	}
}

// DSN is the go-sql-driver connection string for the embedded server.
func (m *MemoryServer) DSN() string {
	return fmt.Sprintf("root@tcp(localhost:%d)/%s", m.Port, m.database)
}

// Close stops the server.
func (m *MemoryServer) Close() {
	m.cancel()
}

func freePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
