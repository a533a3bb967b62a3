package corosio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	id       int
	shutdown *[]int
}

func (s *fakeService) Shutdown() { *s.shutdown = append(*s.shutdown, s.id) }

func TestUseServiceConstructsOnce(t *testing.T) {
	ctx, err := NewContext()
	require.NoError(t, err)
	defer ctx.Close()

	var constructed int
	newFn := func(*Context) *fakeService {
		constructed++
		return &fakeService{id: constructed, shutdown: &[]int{}}
	}

	a := UseService[*fakeService](ctx, newFn)
	b := UseService[*fakeService](ctx, newFn)

	assert.Same(t, a, b, "UseService should return the same singleton")
	assert.Equal(t, 1, constructed, "constructor should run exactly once")
}

func TestFindServiceReportsAbsence(t *testing.T) {
	ctx, err := NewContext()
	require.NoError(t, err)
	defer ctx.Close()

	_, ok := FindService[*fakeService](ctx)
	assert.False(t, ok, "FindService should report false before any UseService call")
}

func TestMakeServiceRejectsDuplicate(t *testing.T) {
	ctx, err := NewContext()
	require.NoError(t, err)
	defer ctx.Close()

	log := &[]int{}
	require.NoError(t, MakeService[*fakeService](ctx, &fakeService{id: 1, shutdown: log}))
	assert.Error(t, MakeService[*fakeService](ctx, &fakeService{id: 2, shutdown: log}),
		"expected a duplicate-registration error")
}

func TestServiceShutdownRunsInReverseOrder(t *testing.T) {
	ctx, err := NewContext()
	require.NoError(t, err)

	var log []int
	type svcA struct{ fakeService }
	type svcB struct{ fakeService }
	UseService[*svcA](ctx, func(*Context) *svcA {
		return &svcA{fakeService{id: 1, shutdown: &log}}
	})
	UseService[*svcB](ctx, func(*Context) *svcB {
		return &svcB{fakeService{id: 2, shutdown: &log}}
	})

	runCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ctx.Run(runCtx))
	require.NoError(t, ctx.Close())

	assert.Equal(t, []int{2, 1}, log, "services should shut down in reverse creation order")
}
