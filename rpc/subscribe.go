package rpc

import (
	"context"
	"fmt"

	"github.com/withObsrvr/xrpl-index-service/feed"
	"github.com/withObsrvr/xrpl-index-service/server"
	"github.com/withObsrvr/xrpl-index-service/xrpl"
)

// SubscriptionGateway is the slice of the subscription manager the
// subscribe and unsubscribe commands drive.
type SubscriptionGateway interface {
	SubLedger(ctx context.Context, sess feed.Session) (map[string]any, error)
	UnsubLedger(sess feed.Session)
	SubTransactions(sess feed.Session)
	UnsubTransactions(sess feed.Session)
	SubProposedTransactions(sess feed.Session)
	UnsubProposedTransactions(sess feed.Session)
	SubManifest(sess feed.Session)
	UnsubManifest(sess feed.Session)
	SubValidation(sess feed.Session)
	UnsubValidation(sess feed.Session)
	SubBookChanges(sess feed.Session)
	UnsubBookChanges(sess feed.Session)
	SubAccount(account string, sess feed.Session)
	UnsubAccount(account string, sess feed.Session)
	SubProposedAccount(account string, sess feed.Session)
	UnsubProposedAccount(account string, sess feed.Session)
	SubBook(book xrpl.Book, sess feed.Session)
	UnsubBook(book xrpl.Book, sess feed.Session)
}

var errNoPermissionURL = NoPermission("The url subscription is not available through this server.")

// SubscribeHandler implements the subscribe command: streams, accounts,
// proposed accounts and books attach the session to the matching feeds.
type SubscribeHandler struct {
	subs SubscriptionGateway
}

func NewSubscribeHandler(subs SubscriptionGateway) *SubscribeHandler {
	return &SubscribeHandler{subs: subs}
}

func (h *SubscribeHandler) Spec(uint32) Spec {
	return Spec{
		Field("streams", IsArray{}),
		Field("accounts", IsArray{}),
		Field("accounts_proposed", IsArray{}),
		Field("books", IsArray{}),
		Field("url", NotSupported{Status: errNoPermissionURL}),
		Field("url_username", Deprecated{}),
		Field("url_password", Deprecated{}),
		Field("user", Deprecated{}),
		Field("password", Deprecated{}),
		Field("rt_accounts", Deprecated{}),
	}
}

func (h *SubscribeHandler) Process(ctx context.Context, params map[string]any, connCtx server.ConnectionContext) (map[string]any, *Status) {
	sess := connCtx.Session
	if sess == nil {
		return nil, &Status{Code: "notSupported", Message: "subscribe requires a WebSocket connection."}
	}

	result := map[string]any{}

	if streams, ok := params["streams"].([]any); ok {
		for _, raw := range streams {
			name, ok := raw.(string)
			if !ok {
				return nil, InvalidParams("streamNotString")
			}
			switch name {
			case "ledger":
				snapshot, err := h.subs.SubLedger(ctx, sess)
				if err != nil {
					return nil, InternalError()
				}
				for k, v := range snapshot {
					result[k] = v
				}
			case "transactions":
				h.subs.SubTransactions(sess)
			case "transactions_proposed":
				h.subs.SubProposedTransactions(sess)
			case "manifests":
				h.subs.SubManifest(sess)
			case "validations":
				h.subs.SubValidation(sess)
			case "book_changes":
				h.subs.SubBookChanges(sess)
			default:
				return nil, &Status{Code: "malformedStream", Message: fmt.Sprintf("Stream %q malformed", name)}
			}
		}
	}

	accounts, status := accountList(params, "accounts")
	if status != nil {
		return nil, status
	}
	for _, account := range accounts {
		h.subs.SubAccount(account, sess)
	}

	proposed, status := accountList(params, "accounts_proposed")
	if status != nil {
		return nil, status
	}
	for _, account := range proposed {
		h.subs.SubProposedAccount(account, sess)
	}

	books, status := bookList(params)
	if status != nil {
		return nil, status
	}
	for _, entry := range books {
		h.subs.SubBook(entry.book, sess)
		if entry.both {
			h.subs.SubBook(xrpl.Book{Gets: entry.book.Pays, Pays: entry.book.Gets}, sess)
		}
	}

	return result, nil
}

// UnsubscribeHandler detaches the session from the named feeds.
type UnsubscribeHandler struct {
	subs SubscriptionGateway
}

func NewUnsubscribeHandler(subs SubscriptionGateway) *UnsubscribeHandler {
	return &UnsubscribeHandler{subs: subs}
}

func (h *UnsubscribeHandler) Spec(uint32) Spec {
	return Spec{
		Field("streams", IsArray{}),
		Field("accounts", IsArray{}),
		Field("accounts_proposed", IsArray{}),
		Field("books", IsArray{}),
		Field("url", NotSupported{Status: errNoPermissionURL}),
		Field("rt_accounts", Deprecated{}),
	}
}

func (h *UnsubscribeHandler) Process(_ context.Context, params map[string]any, connCtx server.ConnectionContext) (map[string]any, *Status) {
	sess := connCtx.Session
	if sess == nil {
		return nil, &Status{Code: "notSupported", Message: "unsubscribe requires a WebSocket connection."}
	}

	if streams, ok := params["streams"].([]any); ok {
		for _, raw := range streams {
			name, ok := raw.(string)
			if !ok {
				return nil, InvalidParams("streamNotString")
			}
			switch name {
			case "ledger":
				h.subs.UnsubLedger(sess)
			case "transactions":
				h.subs.UnsubTransactions(sess)
			case "transactions_proposed":
				h.subs.UnsubProposedTransactions(sess)
			case "manifests":
				h.subs.UnsubManifest(sess)
			case "validations":
				h.subs.UnsubValidation(sess)
			case "book_changes":
				h.subs.UnsubBookChanges(sess)
			default:
				return nil, &Status{Code: "malformedStream", Message: fmt.Sprintf("Stream %q malformed", name)}
			}
		}
	}

	accounts, status := accountList(params, "accounts")
	if status != nil {
		return nil, status
	}
	for _, account := range accounts {
		h.subs.UnsubAccount(account, sess)
	}

	proposed, status := accountList(params, "accounts_proposed")
	if status != nil {
		return nil, status
	}
	for _, account := range proposed {
		h.subs.UnsubProposedAccount(account, sess)
	}

	books, status := bookList(params)
	if status != nil {
		return nil, status
	}
	for _, entry := range books {
		h.subs.UnsubBook(entry.book, sess)
		if entry.both {
			h.subs.UnsubBook(xrpl.Book{Gets: entry.book.Pays, Pays: entry.book.Gets}, sess)
		}
	}

	return map[string]any{}, nil
}

func accountList(params map[string]any, field string) ([]string, *Status) {
	raw, ok := params[field].([]any)
	if !ok {
		return nil, nil
	}
	accounts := make([]string, 0, len(raw))
	for _, entry := range raw {
		s, ok := entry.(string)
		if !ok || !ValidAccountID(s) {
			return nil, MalformedAccount(field)
		}
		accounts = append(accounts, s)
	}
	return accounts, nil
}

type bookEntry struct {
	book xrpl.Book
	both bool
}

func bookList(params map[string]any) ([]bookEntry, *Status) {
	raw, ok := params["books"].([]any)
	if !ok {
		return nil, nil
	}
	books := make([]bookEntry, 0, len(raw))
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, InvalidParams("booksNotObject")
		}
		gets, status := parseIssue(obj, "taker_gets")
		if status != nil {
			return nil, status
		}
		pays, status := parseIssue(obj, "taker_pays")
		if status != nil {
			return nil, status
		}
		both, _ := obj["both"].(bool)
		books = append(books, bookEntry{book: xrpl.Book{Gets: gets, Pays: pays}, both: both})
	}
	return books, nil
}

func parseIssue(obj map[string]any, field string) (xrpl.Issue, *Status) {
	side, ok := obj[field].(map[string]any)
	if !ok {
		return xrpl.Issue{}, InvalidParams(fmt.Sprintf("Missing field '%s'", field))
	}
	currency, ok := side["currency"].(string)
	if !ok || currency == "" {
		return xrpl.Issue{}, &Status{Code: "srcCurMalformed", Message: "Source currency is malformed."}
	}
	if currency == "XRP" {
		return xrpl.XRPIssue(), nil
	}
	issuer, ok := side["issuer"].(string)
	if !ok || !ValidAccountID(issuer) {
		return xrpl.Issue{}, &Status{Code: "srcIsrMalformed", Message: "Source issuer is malformed."}
	}
	return xrpl.Issue{Currency: currency, Issuer: issuer}, nil
}
