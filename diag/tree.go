package diag

import (
	"context"
	"errors"
	"fmt"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/core"
)

type instanceTreeBuilder struct {
	b            backend.Backend
	instanceByID map[string]*core.InstanceState
}

func NewInstanceTreeBuilder(b backend.Backend) *instanceTreeBuilder {
	return &instanceTreeBuilder{
		b:            b,
		instanceByID: map[string]*core.InstanceState{},
	}
}

// BuildInstanceTree returns the tree of sub-orchestrations the given instance belongs to, starting at the
// root instance.
func (itb *instanceTreeBuilder) BuildInstanceTree(ctx context.Context, instanceID string) (*InstanceTree, error) {
	instance, err := itb.getInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("getting instance: %w", err)
	}

	root := &InstanceTree{
		InstanceState: itb.getRoot(ctx, instance),
		Children:      []*InstanceTree{},
	}

	s := []*InstanceTree{root}
	for len(s) > 0 {
		node := s[0]
		s = s[1:]

		children, err := itb.getChildren(ctx, node.InstanceID)
		if err != nil {
			return nil, fmt.Errorf("getting children of instance %s: %w", node.InstanceID, err)
		}

		for _, child := range children {
			t := &InstanceTree{
				InstanceState: child,
				Children:      []*InstanceTree{},
			}

			// Enqueue
			s = append(s, t)

			// Add to current node
			node.Children = append(node.Children, t)
		}
	}

	return root, nil
}

// getRoot follows parent references up. Parents are weak references, a purged parent ends the walk.
func (itb *instanceTreeBuilder) getRoot(ctx context.Context, instance *core.InstanceState) *core.InstanceState {
	visited := map[string]bool{instance.InstanceID: true}

	for instance.ParentInstanceID != "" && !visited[instance.ParentInstanceID] {
		parent, err := itb.getInstance(ctx, instance.ParentInstanceID)
		if err != nil {
			break
		}

		visited[parent.InstanceID] = true
		instance = parent
	}

	return instance
}

func (itb *instanceTreeBuilder) getChildren(ctx context.Context, instanceID string) ([]*core.InstanceState, error) {
	h, err := itb.b.ReadHistory(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	_, execution := history.CurrentExecution(h)

	var children []*core.InstanceState
	seen := map[string]bool{}

	for _, event := range execution {
		if event.Type != history.EventType_SubOrchestrationScheduled {
			continue
		}

		childID := event.Attributes.(*history.SubOrchestrationScheduledAttributes).InstanceID
		if seen[childID] {
			continue
		}

		seen[childID] = true

		child, err := itb.getInstance(ctx, childID)
		if err != nil {
			if errors.Is(err, backend.ErrInstanceNotFound) {
				// Not started yet or purged
				continue
			}

			return nil, fmt.Errorf("getting child instance: %w", err)
		}

		children = append(children, child)
	}

	return children, nil
}

func (itb *instanceTreeBuilder) getInstance(ctx context.Context, instanceID string) (*core.InstanceState, error) {
	if instance, ok := itb.instanceByID[instanceID]; ok {
		return instance, nil
	}

	instance, err := itb.b.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	itb.instanceByID[instanceID] = instance

	return instance, nil
}
