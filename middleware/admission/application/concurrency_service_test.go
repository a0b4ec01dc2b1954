package application

import (
	"context"
	"testing"
	"time"

	"codalyzer-backend/middleware/admission/infra"
)

func TestConcurrencyServiceNilPoolAlwaysAdmits(t *testing.T) {
	svc := ConcurrencyService{}
	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatal("nil pool should always admit")
	}
	release()
}

func TestConcurrencyServiceTimesOutWhenSaturated(t *testing.T) {
	svc := ConcurrencyService{
		Pool:           infra.NewChanPool(1),
		AcquireTimeout: 20 * time.Millisecond,
	}

	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	if _, ok := svc.Acquire(context.Background()); ok {
		t.Fatal("second acquire should time out")
	}

	release()
	release2, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatal("acquire after release should succeed")
	}
	release2()
}
