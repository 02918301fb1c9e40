package fetch

import (
	"context"
	"errors"

	"github.com/roach88/narrow/internal/compiler"
	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
)

// Access answers the permission questions of the history policy and the
// per-user base query.
type Access interface {
	CanAccessChannelHistory(ctx context.Context, viewer model.Viewer, ch model.Channel) (bool, error)
	RecursiveGroupIDs(ctx context.Context, userID int64) ([]int64, error)
}

// OkToIncludeHistory reports whether a narrow may read messages the viewer
// never received. Anonymous web-public queries always may. Otherwise the
// last non-negated channel term decides, or channels:public for viewers
// with public access. Any per-user term (is other than is:resolved, or a
// direct message operator) turns history off since those terms read the
// per-user flags. Channel terms in a mirror realm never include history:
// they match a whole family of channels, not only the one checked here.
func OkToIncludeHistory(ctx context.Context, dir compiler.Directory, access Access, realm model.Realm, viewer *model.Viewer, n narrow.Narrow) (bool, error) {
	if viewer == nil {
		return true, nil
	}

	include := false
	for _, t := range n {
		if t.Negated {
			continue
		}
		switch t.Op {
		case narrow.OpChannel:
			ok, err := canReadChannelHistory(ctx, dir, access, realm, *viewer, t.Operand)
			if err != nil {
				return false, err
			}
			include = ok
		case narrow.OpChannels:
			if narrow.Text(t.Operand) == "public" && viewer.CanAccessPublic {
				include = true
			}
		}
	}

	for _, t := range n {
		switch t.Op {
		case narrow.OpIs:
			if narrow.Text(t.Operand) != "resolved" {
				return false, nil
			}
		case narrow.OpDM, narrow.OpDMIncluding, narrow.OpGroupPMWith:
			return false, nil
		}
	}
	return include, nil
}

func canReadChannelHistory(ctx context.Context, dir compiler.Directory, access Access, realm model.Realm, viewer model.Viewer, operand narrow.Operand) (bool, error) {
	if realm.MirrorRealm {
		return false, nil
	}
	var (
		ch  *model.Channel
		err error
	)
	if id, ok := operand.(narrow.Int); ok {
		ch, err = dir.ChannelByID(ctx, realm.ID, int64(id))
	} else {
		ch, err = dir.ChannelByName(ctx, realm.ID, narrow.Text(operand))
	}
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if realm.MirrorRealm || ch.InMirrorRealm {
		return false, nil
	}
	return access.CanAccessChannelHistory(ctx, viewer, *ch)
}
