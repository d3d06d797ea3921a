package main

import (
	"io"

	"github.com/gin-gonic/gin"

	"rentroll/pkg/progress"
)

// jobEventsHandler streams a job's progress over SSE. The first event is
// a snapshot of the current state so late subscribers are not blind;
// completed and failed jobs get the snapshot plus a done event and the
// stream ends immediately.
func jobEventsHandler(c *gin.Context) {
	job, ok := jobFromParam(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	snapshot := progress.Event{
		Type:     "progress",
		Status:   string(job.Status),
		Progress: job.Progress,
		Message:  job.StatusMessage,
	}
	c.SSEvent("progress", snapshot)

	if job.Status.Terminal() {
		if job.Result != nil {
			c.SSEvent("results", job.Result)
		}
		c.SSEvent("done", gin.H{"status": job.Status})
		c.Writer.Flush()
		return
	}

	ch, cancel := pub.Subscribe(job.ID)
	defer cancel()

	// the job can go terminal between the snapshot read and the
	// subscription, in which case the publisher has already closed the
	// topic and no further event will arrive. Re-check and finish the
	// stream instead of waiting on a dead channel.
	if latest, err := store.Get(c.Request.Context(), job.ID); err == nil && latest.Status.Terminal() {
		if latest.Result != nil {
			c.SSEvent("results", latest.Result)
		}
		c.SSEvent("done", gin.H{"status": latest.Status})
		c.Writer.Flush()
		return
	}

	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return ev.Type != "done"
		case <-c.Request.Context().Done():
			return false
		}
	})
}
