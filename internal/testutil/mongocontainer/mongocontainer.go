// Package mongocontainer runs a throwaway MongoDB instance in docker for
// integration tests.
package mongocontainer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	image         = "mongo:7"
	containerName = "emergency-backend-mongo-test"
	hostPort      = "57017"
)

var (
	once     sync.Once
	setupErr error
)

// Addr exposes the MongoDB host:port combination used by integration tests.
func Addr() string { return "127.0.0.1:" + hostPort }

// URI returns a driver connection string.
func URI() string { return "mongodb://" + Addr() }

// Setup runs the MongoDB container and waits until it answers a ping.
func Setup() error {
	once.Do(func() {
		if _, err := exec.LookPath("docker"); err != nil {
			setupErr = fmt.Errorf("docker executable not found: %w", err)
			return
		}
		_ = stopContainer()
		if err := runDocker("run", "-d", "--rm", "--name", containerName, "-p", hostPort+":27017", image); err != nil {
			setupErr = err
			return
		}
		if err := waitForMongo(URI(), 30*time.Second); err != nil {
			setupErr = err
			return
		}
	})
	return setupErr
}

// Teardown stops the MongoDB container if it is running.
func Teardown() error {
	if setupErr != nil {
		return setupErr
	}
	return stopContainer()
}

func stopContainer() error {
	output, err := exec.Command("docker", "stop", containerName).CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "No such container") {
			return nil
		}
		return fmt.Errorf("docker stop failed: %w: %s", err, output)
	}
	return nil
}

func runDocker(args ...string) error {
	output, err := exec.Command("docker", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s failed: %w: %s", args[0], err, output)
	}
	return nil
}

func waitForMongo(uri string, timeout time.Duration) error {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerSelectionTimeout(500 * time.Millisecond))
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := client.Ping(ctx, nil)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("mongo container did not respond to ping")
}
