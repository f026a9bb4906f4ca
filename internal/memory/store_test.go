package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStore_AddSearch(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "c1", []domain.MemoryMessage{
		{Role: domain.RoleUser, Content: "pay to fee@ybl"},
		{Role: domain.RoleAssistant, Content: "{}"},
	}, map[string]string{"type": domain.KindScamIntelligence}))
	require.NoError(t, s.Add(ctx, "c2", []domain.MemoryMessage{{Role: "user", Content: "other"}}, nil))

	got, err := s.Search(ctx, "scam", "c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "pay to fee@ybl", got[0].Text())

	got, err = s.Search(ctx, "fee@", "c1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = s.Search(ctx, "scam", "c2")
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, 2, s.Len("c1"))
}

func TestStore_LimitKeepsNewest(t *testing.T) {
	s := New(2)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Add(context.Background(), "c", []domain.MemoryMessage{{Role: "user", Content: fmt.Sprintf("m%d", i)}}, nil))
	}
	got, err := s.Search(context.Background(), "", "c")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "m2", got[0].Text())
	require.Equal(t, "m3", got[1].Text())
}

func TestStore_Validation(t *testing.T) {
	s := New(0)
	require.Error(t, s.Add(context.Background(), " ", []domain.MemoryMessage{{Content: "x"}}, nil))
	require.Error(t, s.Add(context.Background(), "c", nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Add(ctx, "c", []domain.MemoryMessage{{Content: "x"}}, nil), context.Canceled)
	_, err := s.Search(ctx, "", "c")
	require.ErrorIs(t, err, context.Canceled)
}

func TestStore_ConcurrentConversations(t *testing.T) {
	s := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv := fmt.Sprintf("c%d", i%2)
			_ = s.Add(context.Background(), conv, []domain.MemoryMessage{{Role: "user", Content: "x"}}, nil)
			_, _ = s.Search(context.Background(), "", conv)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 4, s.Len("c0"))
	require.Equal(t, 4, s.Len("c1"))
}
