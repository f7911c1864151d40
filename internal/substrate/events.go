package substrate

import (
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/registry/parser"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/litentry/assertion-deploy/deploy"
)

// convertEvents converts decoded events named 'Pallet.Event'.
func convertEvents(es []*parser.Event) []deploy.Event {
	res := make([]deploy.Event, 0, len(es))

	for _, e := range es {
		if e == nil {
			continue
		}

		pallet, name, _ := strings.Cut(e.Name, ".")

		res = append(res, deploy.Event{
			Pallet:         pallet,
			Name:           name,
			ApplyExtrinsic: e.Phase != nil && e.Phase.IsApplyExtrinsic,
		})
	}

	return res
}

// checkStatus checks whether the transaction pool accepted the extrinsic.
// Returns false without an error if there is no decision yet.
func checkStatus(st types.ExtrinsicStatus) (bool, error) {
	switch {
	case st.IsInvalid, st.IsDropped, st.IsUsurped:
		return false, fmt.Errorf("%w: extrinsic %s", deploy.ErrSubmissionRejected, statusString(st))
	case st.IsReady, st.IsBroadcast, st.IsInBlock, st.IsRetracted, st.IsFinalized:
		return true, nil
	default:
		// future (nonce gap) and finality timeout
		return false, nil
	}
}

func statusString(st types.ExtrinsicStatus) string {
	switch {
	case st.IsFuture:
		return "future"
	case st.IsReady:
		return "ready"
	case st.IsBroadcast:
		return "broadcast"
	case st.IsInBlock:
		return "in block " + st.AsInBlock.Hex()
	case st.IsRetracted:
		return "retracted"
	case st.IsFinalityTimeout:
		return "finality timeout"
	case st.IsFinalized:
		return "finalized in " + st.AsFinalized.Hex()
	case st.IsUsurped:
		return "usurped"
	case st.IsDropped:
		return "dropped"
	case st.IsInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}
