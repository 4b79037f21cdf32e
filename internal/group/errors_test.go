package group_test

import (
	"testing"

	"github.com/CamberLoid/Warikan/internal/group"
)

// 错误类别标签要能无损地来回映射，
// 跨 HTTP 边界传递时不依赖错误信息文本
func TestErrKindRoundtrip(t *testing.T) {
	for _, err := range []error{
		group.ErrGroupAlreadyExists,
		group.ErrGroupNotFound,
		group.ErrInvalidCiphertext,
		group.ErrSignatureInvalid,
		group.ErrMalformedClearValue,
		group.ErrAlreadyVerified,
		group.ErrInvalidGroupMetadata,
		group.ErrCreatorKeyNotFound,
	} {
		kind := group.ErrKind(err)
		if kind == "" {
			t.Fatalf("no kind for %v", err)
		}
		if got := group.ErrFromKind(kind); got != err {
			t.Errorf("roundtrip failed for %q: got %v", kind, got)
		}
	}

	if group.ErrKind(nil) != "" {
		t.Error("nil error should have no kind")
	}
	if group.ErrFromKind("unknown") != nil {
		t.Error("unknown kind should map to nil")
	}
}
