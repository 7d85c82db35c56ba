package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertPrefix = "execution reverted"

// RevertReason returns the most specific human-readable reason carried by
// err. A contract-supplied revert string wins over the transport message.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason := decodeRevertData(dataErr.ErrorData()); reason != "" {
			return reason
		}
	}
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, revertPrefix+": "); ok && rest != "" {
		return rest
	}
	return msg
}

// IsRevert reports whether err came from the EVM refusing a call rather
// than from transport.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(err.Error(), revertPrefix)
}

func decodeRevertData(data interface{}) string {
	s, ok := data.(string)
	if !ok || s == "" {
		return ""
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return ""
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return ""
	}
	return reason
}
