package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDataError struct {
	msg  string
	data interface{}
}

func (e *fakeDataError) Error() string          { return e.msg }
func (e *fakeDataError) ErrorData() interface{} { return e.data }

func encodeRevert(t *testing.T, reason string) string {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return hexutil.Encode(append(selector, packed...))
}

func TestRevertReason_DataError(t *testing.T) {
	err := &fakeDataError{msg: "execution reverted", data: encodeRevert(t, "Listing already sold")}
	wrapped := fmt.Errorf("send: %w", err)

	assert.Equal(t, "Listing already sold", RevertReason(wrapped))
	assert.True(t, IsRevert(wrapped))
}

func TestRevertReason_Fallbacks(t *testing.T) {
	assert.Equal(t, "", RevertReason(nil))
	assert.Equal(t, "Not owner", RevertReason(errors.New("execution reverted: Not owner")))
	assert.Equal(t, "connection refused", RevertReason(errors.New("connection refused")))

	undecodable := &fakeDataError{msg: "execution reverted", data: "0xdeadbeef"}
	assert.Equal(t, "execution reverted", RevertReason(undecodable))
}

func TestIsRevert(t *testing.T) {
	assert.False(t, IsRevert(nil))
	assert.False(t, IsRevert(errors.New("dial tcp: i/o timeout")))
	assert.True(t, IsRevert(errors.New("execution reverted")))
}
