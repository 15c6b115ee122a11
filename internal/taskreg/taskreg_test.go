package taskreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateAndGet(t *testing.T) {
	a := assert.New(t)

	r := NewRegistry()
	r.Create("t1")

	task, err := r.Get("t1")
	a.NoError(err)
	a.Equal(StatusInProgress, task.Status)
	a.Equal(0, task.Progress)
	a.Empty(task.Error)
}

func TestGetUnknown(t *testing.T) {
	a := assert.New(t)

	r := NewRegistry()

	_, err := r.Get("missing")
	a.ErrorIs(err, ErrNoSuchTask)
}

func TestProgressIsMonotone(t *testing.T) {
	a := assert.New(t)

	r := NewRegistry()
	r.Create("t1")

	r.Update("t1", StatusDownloading, 30)
	r.Update("t1", StatusConverting, 10)

	task, err := r.Get("t1")
	a.NoError(err)
	a.Equal(StatusConverting, task.Status)
	a.Equal(30, task.Progress, "progress must never go backwards")
}

func TestTerminalStatesStick(t *testing.T) {
	a := assert.New(t)

	r := NewRegistry()
	r.Create("t1")
	r.Fail("t1", "network down")
	r.Update("t1", StatusCompleted, 100)

	task, err := r.Get("t1")
	a.NoError(err)
	a.Equal(StatusFailed, task.Status)
	a.Equal("network down", task.Error)

	r.Create("t2")
	r.Update("t2", StatusCompleted, 100)
	r.Fail("t2", "too late")

	task, err = r.Get("t2")
	a.NoError(err)
	a.Equal(StatusCompleted, task.Status)
	a.Empty(task.Error)
}

func TestAllSnapshots(t *testing.T) {
	a := assert.New(t)

	r := NewRegistry()
	r.Create("t1")
	r.Create("t2")

	tasks := r.All()
	a.Len(tasks, 2)

	// mutating the snapshot must not touch the registry
	tasks[0].Progress = 99

	for _, id := range []string{"t1", "t2"} {
		task, err := r.Get(id)
		a.NoError(err)
		a.Equal(0, task.Progress)
	}
}
