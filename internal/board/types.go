// Package board holds the in-memory, multi-container ordered collection of
// items that the dashboard renders.
//
// A Board is owned by a single goroutine (the engine loop). It is not safe
// for concurrent use; readers receive immutable View copies instead.
//
// Every item id lives in at most one container at any instant. An id absent
// from all containers is considered deleted.
package board

import (
	"cmp"
	"fmt"
	"slices"
)

// ContainerID names an ordered bucket of items (a swimlane or the bank).
type ContainerID string

// Default container topology used by the dashboard.
const (
	FeedContainer    ContainerID = "feed-1"
	StagingContainer ContainerID = "active-ops"
	BankContainer    ContainerID = "the-bank"
)

// ContainerSpec declares one container of a board topology.
// Tracked containers mirror durable store state and are replaced by
// snapshots; local containers are view-only and never persisted.
type ContainerSpec struct {
	ID      ContainerID `json:"id" yaml:"id"`
	Tracked bool        `json:"tracked" yaml:"tracked"`
}

// DefaultTopology returns the inbound feed, staging, and bank containers.
func DefaultTopology() []ContainerSpec {
	return []ContainerSpec{
		{ID: FeedContainer, Tracked: true},
		{ID: StagingContainer, Tracked: false},
		{ID: BankContainer, Tracked: true},
	}
}

// AnnotationState mirrors the lifecycle of an item's annotation request so
// renderers can show progress and the failure marker.
type AnnotationState string

const (
	AnnotationIdle       AnnotationState = "idle"
	AnnotationRequesting AnnotationState = "requesting"
	AnnotationStreaming  AnnotationState = "streaming"
	AnnotationComplete   AnnotationState = "complete"
	AnnotationFailed     AnnotationState = "failed"
)

// DepositState tracks a bank deposit from the client's point of view.
type DepositState string

const (
	DepositNone      DepositState = ""
	DepositPending   DepositState = "pending"
	DepositPersisted DepositState = "persisted"
	DepositRetry     DepositState = "retry"
)

// Item is one content card.
// Annotation and deposit fields are client-local; everything else comes from
// the durable store.
type Item struct {
	ID           string `json:"id" yaml:"id"`
	OriginSource string `json:"origin_source" yaml:"source"`
	OriginHandle string `json:"origin_handle" yaml:"handle"`
	DisplayTime  string `json:"display_time" yaml:"time"`
	Content      string `json:"content" yaml:"content"`

	AnnotationVisible bool            `json:"annotation_visible" yaml:"-"`
	AnnotationText    string          `json:"annotation_text,omitempty" yaml:"-"` // empty means no annotation
	AnnotationState   AnnotationState `json:"annotation_state,omitempty" yaml:"-"`

	IsPersisted bool         `json:"is_persisted" yaml:"-"`
	Deposit     DepositState `json:"deposit,omitempty" yaml:"-"`
}

// Validate checks the fields the board relies on.
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	return nil
}

// Persona is one entry of the annotation persona catalog. Personas are
// listed by name.
type Persona struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	IconSlug string `json:"icon_slug" yaml:"icon_slug"`
	Model    string `json:"model" yaml:"model"`
}

// Validate checks that the persona can be stored and listed.
func (p *Persona) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("persona id cannot be empty")
	}
	if p.Name == "" {
		return fmt.Errorf("persona '%s' has no name", p.ID)
	}
	return nil
}

// SortPersonas orders personas by name, then id.
func SortPersonas(personas []Persona) {
	slices.SortFunc(personas, func(a, b Persona) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Position is the location of an item on the board.
type Position struct {
	Container ContainerID
	Index     int
}

// AnnotationMode selects how UpsertAnnotation combines text.
type AnnotationMode int

const (
	// AnnotationAppend adds the text to the end of the current annotation.
	AnnotationAppend AnnotationMode = iota
	// AnnotationReplace overwrites the current annotation.
	AnnotationReplace
)
