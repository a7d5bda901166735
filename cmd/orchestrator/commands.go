package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cschleiden/go-orchestrations/client"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/cschleiden/go-orchestrations/samples/chunks"
)

type StartCmd struct {
	InstanceID  string        `help:"ID of the new instance, random if empty."`
	TotalChunks int           `help:"Number of chunks, 0 uses the default window input."`
	Wait        time.Duration `help:"Wait up to this long for the result."`
}

func (c *StartCmd) Run(g *Globals) error {
	cl, closeFn, err := g.client()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()

	input := chunks.WindowInput(time.Now())
	if c.TotalChunks > 0 {
		input.TotalChunks = c.TotalChunks
	}

	id, err := cl.CreateOrchestrationInstance(ctx, client.InstanceOptions{InstanceID: c.InstanceID}, chunks.OrchestratorName, input)
	if err != nil {
		return err
	}

	if c.Wait <= 0 {
		return g.print(map[string]string{"instance_id": id})
	}

	r, err := client.GetOrchestrationResult[*chunks.Result](ctx, cl, id, c.Wait)
	if err != nil {
		return err
	}

	return g.print(r)
}

type StatusCmd struct {
	InstanceID string `arg:"" help:"Instance ID."`
}

func (c *StatusCmd) Run(g *Globals) error {
	cl, closeFn, err := g.client()
	if err != nil {
		return err
	}
	defer closeFn()

	s, err := cl.GetOrchestrationState(context.Background(), c.InstanceID)
	if err != nil {
		return err
	}

	return g.print(s)
}

type RaiseCmd struct {
	InstanceID string `arg:"" help:"Instance ID."`
	Name       string `arg:"" help:"Event name."`
	Payload    string `arg:"" optional:"" help:"JSON payload of the event." default:"null"`
}

func (c *RaiseCmd) Run(g *Globals) error {
	if !json.Valid([]byte(c.Payload)) {
		return fmt.Errorf("payload is not valid JSON: %s", c.Payload)
	}

	cl, closeFn, err := g.client()
	if err != nil {
		return err
	}
	defer closeFn()

	return cl.RaiseEvent(context.Background(), c.InstanceID, c.Name, json.RawMessage(c.Payload))
}

type TerminateCmd struct {
	InstanceID string `arg:"" help:"Instance ID."`
	Reason     string `help:"Reason recorded with the termination."`
}

func (c *TerminateCmd) Run(g *Globals) error {
	cl, closeFn, err := g.client()
	if err != nil {
		return err
	}
	defer closeFn()

	return cl.TerminateOrchestrationInstance(context.Background(), c.InstanceID, c.Reason)
}

type PurgeCmd struct {
	InstanceID string        `arg:"" optional:"" help:"Instance ID. If empty, all finished instances matching the filter are purged."`
	OlderThan  time.Duration `help:"Only purge instances completed longer ago than this."`
}

func (c *PurgeCmd) Run(g *Globals) error {
	cl, closeFn, err := g.client()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()

	if c.InstanceID != "" {
		return cl.PurgeOrchestrationInstance(ctx, c.InstanceID)
	}

	filter := &core.InstanceFilter{}
	if c.OlderThan > 0 {
		before := time.Now().Add(-c.OlderThan)
		filter.CompletedBefore = &before
	}

	n, err := cl.PurgeOrchestrationInstances(ctx, filter)
	if err != nil {
		return err
	}

	return g.print(map[string]int{"purged": n})
}

type ListCmd struct {
	Status []string `help:"Only list instances with these statuses."`
	Name   string   `help:"Only list instances of this orchestrator."`
	Limit  int      `help:"Maximum number of instances." default:"50"`
}

func (c *ListCmd) Run(g *Globals) error {
	filter := &core.InstanceFilter{
		Name:  c.Name,
		Limit: c.Limit,
	}

	for _, s := range c.Status {
		status, err := core.ParseRuntimeStatus(s)
		if err != nil {
			return err
		}

		filter.Statuses = append(filter.Statuses, status)
	}

	cl, closeFn, err := g.client()
	if err != nil {
		return err
	}
	defer closeFn()

	instances, err := cl.ListOrchestrationInstances(context.Background(), filter)
	if err != nil {
		return err
	}

	return g.print(instances)
}

type TestActivityCmd struct{}

func (c *TestActivityCmd) Run(g *Globals) error {
	r := chunks.TestActivity(context.Background(), chunks.NewProcessor())
	if err := g.print(r); err != nil {
		return err
	}

	if !r.Success {
		return fmt.Errorf("activity test failed: %s", r.Error)
	}

	return nil
}
