package common

import (
	"errors"
	"testing"
)

func TestStoreErr(t *testing.T) {
	cases := map[StoreErrType]string{
		KeyNotFound: "Accounts, abc, Not Found",
		Corrupted:   "Accounts, abc, Corrupted",
		Closed:      "Accounts, abc, Closed",
	}

	for errType, msg := range cases {
		err := NewStoreErr("Accounts", errType, "abc")

		if err.Error() != msg {
			t.Fatalf("expected %q, got %q", msg, err.Error())
		}

		for other := range cases {
			if IsStore(err, other) != (other == errType) {
				t.Fatalf("IsStore(%q, %d) should be %v", msg, other, other == errType)
			}
		}
	}

	if IsStore(errors.New("Not Found"), KeyNotFound) {
		t.Fatalf("plain errors are not store errors")
	}
}
