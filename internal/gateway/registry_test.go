package gateway

import (
	"context"
	"testing"

	"github.com/me/remotetask/internal/logging"
	"github.com/me/remotetask/pkg/model"
)

func TestRegistry_Open(t *testing.T) {
	r := NewRegistry(logging.Discard())
	want := newTestAppService(&mockCaller{})
	r.Register(model.ServiceAppService, func(context.Context, model.Connection) (Gateway, error) {
		return want, nil
	})

	got, err := r.Open(context.Background(), model.Connection{Service: model.ServiceAppService})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != Gateway(want) {
		t.Error("Open returned a different gateway")
	}

	if _, err := r.Open(context.Background(), model.Connection{Service: model.ServiceSageMaker}); err == nil {
		t.Error("expected error for unregistered service")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(logging.Discard())

	g, err := r.Open(context.Background(), model.Connection{
		Name:      "bvbrc",
		Service:   model.ServiceAppService,
		Principal: "testuser",
		Secret:    "token",
		Endpoint:  "https://p3.theseed.org/services/app_service",
	})
	if err != nil {
		t.Fatalf("Open appservice: %v", err)
	}
	as, ok := g.(*AppService)
	if !ok {
		t.Fatalf("gateway type = %T, want *AppService", g)
	}
	if as.workspace != "/testuser/home/" {
		t.Errorf("workspace = %q", as.workspace)
	}

	g, err = r.Open(context.Background(), model.Connection{
		Name:      "aws",
		Service:   model.ServiceSageMaker,
		Principal: "AKIAEXAMPLE",
		Secret:    "secret",
		Region:    "us-west-2",
	})
	if err != nil {
		t.Fatalf("Open sagemaker: %v", err)
	}
	if _, ok := g.(*SageMaker); !ok {
		t.Errorf("gateway type = %T, want *SageMaker", g)
	}
}
