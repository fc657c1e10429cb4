// Package common holds the step definitions every registry feature shares:
// reachability and assertions on the last HTTP response.
package common

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// Client is the slice of the scenario context these steps need.
type Client interface {
	GET(path string, headers map[string]string) error
	GetResponseField(path string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

func RegisterSteps(sc *godog.ScenarioContext, c Client) {
	s := &steps{c: c}
	sc.Step(`^the registry is running$`, s.registryIsRunning)
	sc.Step(`^I GET "([^"]*)" without authorization$`, s.anonymousGet)
	sc.Step(`^the response status should be (\d+)$`, s.statusIs)
	sc.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, s.fieldEquals)
}

type steps struct {
	c Client
}

func (s *steps) registryIsRunning(context.Context) error {
	if err := s.c.GET("/health/live", nil); err != nil {
		return fmt.Errorf("registry unreachable: %w", err)
	}
	if got := s.c.GetLastResponseStatus(); got != http.StatusOK {
		return fmt.Errorf("liveness probe returned %d", got)
	}
	return nil
}

func (s *steps) anonymousGet(_ context.Context, path string) error {
	return s.c.GET(path, nil)
}

func (s *steps) statusIs(_ context.Context, want int) error {
	if got := s.c.GetLastResponseStatus(); got != want {
		return fmt.Errorf("status %d, want %d; body: %s", got, want, s.c.GetLastResponseBody())
	}
	return nil
}

// fieldEquals compares the JSON value's default formatting, so booleans are
// written "true" and whole numbers without a fraction.
func (s *steps) fieldEquals(_ context.Context, path, want string) error {
	got, err := s.c.GetResponseField(path)
	if err != nil {
		return err
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("field %s = %v, want %s; body: %s", path, got, want, s.c.GetLastResponseBody())
	}
	return nil
}
