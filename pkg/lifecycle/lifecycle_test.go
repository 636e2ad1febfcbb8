package lifecycle_test

import (
	"encoding/json"
	"testing"

	"github.com/modelyard/modelyard/pkg/lifecycle"
)

func TestAsInferenceRunStatus(t *testing.T) {
	for _, want := range []lifecycle.InferenceRunStatus{
		lifecycle.InferenceRunning, lifecycle.InferenceDone, lifecycle.InferenceFailed,
	} {
		got, err := lifecycle.AsInferenceRunStatus(want.String())
		if err != nil {
			t.Errorf("%s: %v", want, err)
		}
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	}

	if _, err := lifecycle.AsInferenceRunStatus("cancelled"); err == nil {
		t.Error("unknown status accepted")
	}
}

func TestInferenceRunStatus_UnmarshalJSON(t *testing.T) {
	t.Run("a manifest round-trips with its status intact", func(t *testing.T) {
		written := lifecycle.InferenceRun{
			RunId:  "0badf00d",
			Status: lifecycle.InferenceFailed,
		}
		content, err := json.Marshal(written)
		if err != nil {
			t.Fatal(err)
		}

		read := lifecycle.InferenceRun{}
		if err := json.Unmarshal(content, &read); err != nil {
			t.Fatal(err)
		}
		if read.Status != lifecycle.InferenceFailed {
			t.Errorf("status = %s, want failed", read.Status)
		}
	})

	t.Run("an unknown status is rejected, not carried through", func(t *testing.T) {
		read := lifecycle.InferenceRun{}
		err := json.Unmarshal([]byte(`{"RunId":"x","Status":"cancelled"}`), &read)
		if err == nil {
			t.Error("unknown status accepted")
		}
	})
}
