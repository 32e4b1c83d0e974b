package interpreter

import (
	"errors"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

var errMissingTimelineID = errors.New("payload missing timeline id")

func applyTimelineCreated(c opContext) error {
	id := c.payload.str("timelineId", "id")
	if id == "" {
		id = c.timelineID
	}
	if id == "" {
		return errMissingTimelineID
	}
	name := c.payload.str("name")

	if _, exists := c.snapshot.Timelines[id]; !exists {
		c.snapshot.Timelines[id] = graphmodel.NewTimeline()
	}

	order := len(c.snapshot.TimelinesMetadata)
	if n, ok := c.payload.number("order"); ok {
		order = int(n)
	}
	c.snapshot.TimelinesMetadata = append(c.snapshot.TimelinesMetadata, graphmodel.TimelineMeta{
		ID:        id,
		Name:      name,
		CreatedAt: c.snapshot.LastModified,
		IsActive:  c.payload.boolean(true, "isActive"),
		Order:     order,
	})
	return nil
}

func applyTimelineRenamed(c opContext) error {
	id := c.payload.str("timelineId", "id")
	if id == "" {
		id = c.timelineID
	}
	name := c.payload.str("name")
	if id == "" || name == "" {
		return errMissingTimelineID
	}

	for i, m := range c.snapshot.TimelinesMetadata {
		if m.ID == id {
			c.snapshot.TimelinesMetadata[i].Name = name
			break
		}
	}
	return nil
}

func applyTimelineDeleted(c opContext) error {
	id := c.payload.str("timelineId", "id")
	if id == "" {
		id = c.timelineID
	}
	if id == "" {
		return errMissingTimelineID
	}

	delete(c.snapshot.Timelines, id)
	filtered := c.snapshot.TimelinesMetadata[:0:0]
	for _, m := range c.snapshot.TimelinesMetadata {
		if m.ID != id {
			filtered = append(filtered, m)
		}
	}
	c.snapshot.TimelinesMetadata = filtered
	return nil
}

func applyTimelineDuplicated(c opContext) error {
	srcID := c.payload.str("sourceTimelineId", "fromTimelineId")
	if srcID == "" {
		srcID = c.timelineID
	}
	newID := c.payload.str("timelineId", "newTimelineId", "id")
	if srcID == "" || newID == "" {
		return errMissingTimelineID
	}

	src, ok := c.snapshot.Timelines[srcID]
	if !ok {
		src = graphmodel.NewTimeline()
	}
	c.snapshot.Timelines[newID] = src.Clone()

	name := c.payload.str("name")
	if name == "" {
		name = newID
	}
	order := len(c.snapshot.TimelinesMetadata)
	if n, ok := c.payload.number("order"); ok {
		order = int(n)
	}
	c.snapshot.TimelinesMetadata = append(c.snapshot.TimelinesMetadata, graphmodel.TimelineMeta{
		ID:        newID,
		Name:      name,
		CreatedAt: c.snapshot.LastModified,
		IsActive:  c.payload.boolean(false, "isActive"),
		Order:     order,
	})
	return nil
}
