package fetch

import (
	"context"
	"fmt"

	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/queryir"
)

var (
	tableMessages     = queryir.Table{Name: "messages", Alias: "m"}
	tableUserMessages = queryir.Table{Name: "user_messages", Alias: "um"}
	tableRecipients   = queryir.Table{Name: "recipients", Alias: "r"}

	colMessageID     = queryir.Col{Table: "m", Name: "id"}
	colMessageRealm  = queryir.Col{Table: "m", Name: "realm_id"}
	colMessageRecip  = queryir.Col{Table: "m", Name: "recipient_id"}
	colUserMessageID = queryir.Col{Table: "um", Name: "message_id"}
	colUserID        = queryir.Col{Table: "um", Name: "user_id"}
	colFlags         = queryir.Col{Table: "um", Name: "flags"}
	colRecipientID   = queryir.Col{Table: "r", Name: "id"}
	colRecipientType = queryir.Col{Table: "r", Name: "type"}
)

// Base is the select a narrow is compiled onto, and its message id column.
type Base struct {
	Select    *queryir.Select
	MessageID queryir.Col
	// PerUser is set when the select joins the viewer's user_messages rows
	// and so outputs flags.
	PerUser bool
}

// BaseQuery returns the realm-wide message select for history and
// web-public queries, and otherwise the viewer's received messages
// restricted to conversations they can still read.
func BaseQuery(ctx context.Context, access Access, realm model.Realm, viewer *model.Viewer, includeHistory bool) (Base, error) {
	if viewer == nil || includeHistory {
		return Base{
			Select: &queryir.Select{
				Columns: []queryir.Column{{Value: colMessageID, Alias: "message_id"}},
				From:    tableMessages,
				Where:   []queryir.Predicate{queryir.Eq(colMessageRealm, queryir.Int(realm.ID))},
			},
			MessageID: colMessageID,
		}, nil
	}

	visible, err := visibleRecipients(ctx, access, *viewer)
	if err != nil {
		return Base{}, err
	}
	return Base{
		Select: &queryir.Select{
			Columns: []queryir.Column{
				{Value: colUserMessageID, Alias: "message_id"},
				{Value: colFlags, Alias: "flags"},
			},
			From: tableUserMessages,
			Joins: []queryir.Join{
				{Table: tableMessages, On: queryir.Eq(colMessageID, colUserMessageID)},
				{Table: tableRecipients, On: queryir.Eq(colRecipientID, colMessageRecip)},
			},
			Where: []queryir.Predicate{
				queryir.Eq(colUserID, queryir.Int(viewer.UserID)),
				visible,
			},
		},
		MessageID: colUserMessageID,
		PerUser:   true,
	}, nil
}

// visibleRecipients keeps direct messages, and channel messages whose
// channel the viewer can still read: public ones (for viewers with public
// access), ones their groups may join, and ones they subscribe to.
func visibleRecipients(ctx context.Context, access Access, viewer model.Viewer) (queryir.Predicate, error) {
	channelCol := func(name string) queryir.Col { return queryir.Col{Table: "c", Name: name} }

	var readable []queryir.Predicate
	if viewer.CanAccessPublic {
		readable = append(readable, queryir.AllOf(
			queryir.Negate(queryir.Truthy{Col: channelCol("invite_only")}),
			queryir.Negate(queryir.Truthy{Col: channelCol("is_in_mirror_realm")}),
		))
	}
	if !viewer.IsGuest {
		groups, err := access.RecursiveGroupIDs(ctx, viewer.UserID)
		if err != nil {
			return nil, fmt.Errorf("recursive groups: %w", err)
		}
		if len(groups) > 0 {
			readable = append(readable,
				queryir.In{Left: channelCol("can_subscribe_group_id"), Values: groups},
				queryir.In{Left: channelCol("can_add_subscribers_group_id"), Values: groups},
			)
		}
	}

	return queryir.AnyOf(
		queryir.Ne(colRecipientType, queryir.Int(int64(model.RecipientChannel))),
		queryir.Exists{
			From: queryir.Table{Name: "channels", Alias: "c"},
			Where: []queryir.Predicate{
				queryir.Eq(channelCol("recipient_id"), colMessageRecip),
				queryir.AnyOf(readable...),
			},
		},
		queryir.Exists{
			From: queryir.Table{Name: "subscriptions", Alias: "s"},
			Where: []queryir.Predicate{
				queryir.Eq(queryir.Col{Table: "s", Name: "user_id"}, queryir.Int(viewer.UserID)),
				queryir.Eq(queryir.Col{Table: "s", Name: "recipient_id"}, colMessageRecip),
				queryir.Truthy{Col: queryir.Col{Table: "s", Name: "active"}},
			},
		},
	), nil
}
