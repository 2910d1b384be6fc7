package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/withObsrvr/xrpl-index-service/xrpl"
)

// Backend is the read API the manager needs for the ledger-stream
// bootstrap: the validated range, a header by sequence, and raw ledger
// objects (for the fee schedule).
type Backend interface {
	LedgerRange(ctx context.Context) (minSeq, maxSeq uint32, err error)
	FetchLedgerBySequence(ctx context.Context, seq uint32) (xrpl.LedgerHeader, error)
	FetchLedgerObject(ctx context.Context, key xrpl.Hash256) ([]byte, error)
}

// SubscriptionManager fans published ledger events out to subscribed
// sessions. Publish paths enqueue onto per-topic strands of the shared
// executor and return immediately; delivery is FIFO within a topic and
// unordered across topics. Publishing never returns an error: a failed
// send marks the session dead and its entries are swept on the next pass.
type SubscriptionManager struct {
	log     *zap.Logger
	backend Backend

	ledgerStrand      *strand
	txStrand          *strand
	proposedStrand    *strand
	manifestStrand    *strand
	validationStrand  *strand
	bookChangesStrand *strand

	ledger       *subscribers
	transactions *subscribers
	txProposed   *subscribers
	manifests    *subscribers
	validations  *subscribers
	bookChanges  *subscribers

	accounts         *keyedSubscribers
	accountsProposed *keyedSubscribers
	books            *keyedSubscribers
}

// NewSubscriptionManager wires the manager onto an executor and the
// backend read API.
func NewSubscriptionManager(backend Backend, exec *Executor, log *zap.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		log:               log,
		backend:           backend,
		ledgerStrand:      newStrand(exec),
		txStrand:          newStrand(exec),
		proposedStrand:    newStrand(exec),
		manifestStrand:    newStrand(exec),
		validationStrand:  newStrand(exec),
		bookChangesStrand: newStrand(exec),
		ledger:            newSubscribers(),
		transactions:      newSubscribers(),
		txProposed:        newSubscribers(),
		manifests:         newSubscribers(),
		validations:       newSubscribers(),
		bookChanges:       newSubscribers(),
		accounts:          newKeyedSubscribers(),
		accountsProposed:  newKeyedSubscribers(),
		books:             newKeyedSubscribers(),
	}
}

// SubLedger subscribes the session to the ledger stream and returns the
// bootstrap snapshot: the validated range, the latest header and the
// current fee schedule.
func (m *SubscriptionManager) SubLedger(ctx context.Context, sess Session) (map[string]any, error) {
	minSeq, maxSeq, err := m.backend.LedgerRange(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger range: %w", err)
	}
	header, err := m.backend.FetchLedgerBySequence(ctx, maxSeq)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger %d: %w", maxSeq, err)
	}
	blob, err := m.backend.FetchLedgerObject(ctx, xrpl.FeeSettingsKey())
	if err != nil {
		return nil, fmt.Errorf("fetch fee settings: %w", err)
	}
	fees, err := xrpl.ParseFeeSettings(blob)
	if err != nil {
		return nil, fmt.Errorf("parse fee settings: %w", err)
	}

	m.ledger.add(sess)

	return map[string]any{
		"validated_ledgers": fmt.Sprintf("%d-%d", minSeq, maxSeq),
		"ledger_index":      header.Sequence,
		"ledger_hash":       header.Hash.String(),
		"ledger_time":       header.CloseTime,
		"fee_base":          fees.Base,
		"reserve_base":      fees.ReserveBase,
		"reserve_inc":       fees.ReserveInc,
	}, nil
}

// UnsubLedger removes the session from the ledger stream.
func (m *SubscriptionManager) UnsubLedger(sess Session) { m.ledger.remove(sess.SessionID()) }

// SubTransactions subscribes to validated transactions.
func (m *SubscriptionManager) SubTransactions(sess Session) { m.transactions.add(sess) }

// UnsubTransactions removes the session from validated transactions.
func (m *SubscriptionManager) UnsubTransactions(sess Session) {
	m.transactions.remove(sess.SessionID())
}

// SubProposedTransactions subscribes to the proposed-transaction stream.
// Validated transactions are republished on this stream as well.
func (m *SubscriptionManager) SubProposedTransactions(sess Session) { m.txProposed.add(sess) }

// UnsubProposedTransactions removes the session from the proposed stream.
func (m *SubscriptionManager) UnsubProposedTransactions(sess Session) {
	m.txProposed.remove(sess.SessionID())
}

// SubManifest subscribes to validator manifests.
func (m *SubscriptionManager) SubManifest(sess Session) { m.manifests.add(sess) }

// UnsubManifest removes the session from validator manifests.
func (m *SubscriptionManager) UnsubManifest(sess Session) { m.manifests.remove(sess.SessionID()) }

// SubValidation subscribes to validation votes.
func (m *SubscriptionManager) SubValidation(sess Session) { m.validations.add(sess) }

// UnsubValidation removes the session from validation votes.
func (m *SubscriptionManager) UnsubValidation(sess Session) { m.validations.remove(sess.SessionID()) }

// SubBookChanges subscribes to per-ledger book-change summaries.
func (m *SubscriptionManager) SubBookChanges(sess Session) { m.bookChanges.add(sess) }

// UnsubBookChanges removes the session from book-change summaries.
func (m *SubscriptionManager) UnsubBookChanges(sess Session) { m.bookChanges.remove(sess.SessionID()) }

// SubAccount subscribes to validated transactions affecting an account.
func (m *SubscriptionManager) SubAccount(account string, sess Session) {
	m.accounts.add(account, sess)
}

// UnsubAccount removes the session's subscription for an account.
func (m *SubscriptionManager) UnsubAccount(account string, sess Session) {
	m.accounts.remove(account, sess.SessionID())
}

// SubProposedAccount subscribes to proposed transactions affecting an
// account.
func (m *SubscriptionManager) SubProposedAccount(account string, sess Session) {
	m.accountsProposed.add(account, sess)
}

// UnsubProposedAccount removes the session's proposed-account
// subscription.
func (m *SubscriptionManager) UnsubProposedAccount(account string, sess Session) {
	m.accountsProposed.remove(account, sess.SessionID())
}

// SubBook subscribes to transactions crossing an order book.
func (m *SubscriptionManager) SubBook(book xrpl.Book, sess Session) {
	m.books.add(book.Key(), sess)
}

// UnsubBook removes the session's book subscription.
func (m *SubscriptionManager) UnsubBook(book xrpl.Book, sess Session) {
	m.books.remove(book.Key(), sess.SessionID())
}

// ForwardManifest delivers a manifest object to manifest subscribers.
func (m *SubscriptionManager) ForwardManifest(obj map[string]any) {
	m.forward(m.manifestStrand, m.manifests, obj)
}

// ForwardValidation delivers a validation object to validation
// subscribers.
func (m *SubscriptionManager) ForwardValidation(obj map[string]any) {
	m.forward(m.validationStrand, m.validations, obj)
}

func (m *SubscriptionManager) forward(str *strand, subs *subscribers, obj map[string]any) {
	msg, err := json.Marshal(obj)
	if err != nil {
		m.log.Error("marshal forwarded message", zap.Error(err))
		return
	}
	str.post(func() {
		for _, sess := range subs.snapshot() {
			m.send(sess, msg)
		}
	})
}

// ForwardProposedTransaction delivers a pre-consensus transaction to the
// proposed-transaction stream and to proposed-account subscribers of
// every account the transaction names.
func (m *SubscriptionManager) ForwardProposedTransaction(obj map[string]any) {
	msg, err := json.Marshal(obj)
	if err != nil {
		m.log.Error("marshal proposed transaction", zap.Error(err))
		return
	}
	accounts := proposedAccounts(obj)
	m.proposedStrand.post(func() {
		for _, sess := range m.txProposed.snapshot() {
			m.send(sess, msg)
		}
		notified := make(map[uint64]bool)
		for _, account := range accounts {
			for _, sess := range m.accountsProposed.snapshot(account) {
				if notified[sess.SessionID()] {
					continue
				}
				notified[sess.SessionID()] = true
				m.send(sess, msg)
			}
		}
	})
}

// proposedAccounts pulls the account-valued fields out of a proposed
// transaction envelope.
func proposedAccounts(obj map[string]any) []string {
	tx, ok := obj["transaction"].(map[string]any)
	if !ok {
		return nil
	}
	var accounts []string
	seen := map[string]bool{}
	for _, field := range []string{"Account", "Destination"} {
		if s, ok := tx[field].(string); ok && s != "" && !seen[s] {
			seen[s] = true
			accounts = append(accounts, s)
		}
	}
	return accounts
}

// PubLedger broadcasts a ledgerClosed event to ledger-stream subscribers.
func (m *SubscriptionManager) PubLedger(header xrpl.LedgerHeader, fees xrpl.Fees, ledgerRange string, txnCount uint32) {
	msg, err := json.Marshal(map[string]any{
		"type":              "ledgerClosed",
		"ledger_index":      header.Sequence,
		"ledger_hash":       header.Hash.String(),
		"ledger_time":       header.CloseTime,
		"fee_base":          fees.Base,
		"reserve_base":      fees.ReserveBase,
		"reserve_inc":       fees.ReserveInc,
		"validated_ledgers": ledgerRange,
		"txn_count":         txnCount,
	})
	if err != nil {
		m.log.Error("marshal ledgerClosed", zap.Error(err))
		return
	}
	m.ledgerStrand.post(func() {
		for _, sess := range m.ledger.snapshot() {
			m.send(sess, msg)
		}
	})
}

// PubBookChanges aggregates one ledger's offer crossings and broadcasts a
// bookChanges event.
func (m *SubscriptionManager) PubBookChanges(header xrpl.LedgerHeader, txs []*xrpl.TransactionAndMetadata) {
	changes := ComputeBookChanges(txs)
	changeList := make([]any, 0, len(changes))
	for _, c := range changes {
		changeList = append(changeList, c.asJSON())
	}
	msg, err := json.Marshal(map[string]any{
		"type":         "bookChanges",
		"ledger_index": header.Sequence,
		"ledger_hash":  header.Hash.String(),
		"ledger_time":  header.CloseTime,
		"changes":      changeList,
	})
	if err != nil {
		m.log.Error("marshal bookChanges", zap.Error(err))
		return
	}
	m.bookChangesStrand.post(func() {
		for _, sess := range m.bookChanges.snapshot() {
			m.send(sess, msg)
		}
	})
}

// PubTransaction fans one validated transaction out to every matching
// topic. The transactions and transactions_proposed streams each deliver
// independently; a validated-account subscription dominates the
// proposed-account one (a session holding both receives one send); book
// subscriptions deliver independently of account subscriptions, once per
// session across matching books.
func (m *SubscriptionManager) PubTransaction(tx *xrpl.TransactionAndMetadata, header xrpl.LedgerHeader) {
	m.txStrand.post(func() { m.publishTransaction(tx, header) })
}

func (m *SubscriptionManager) publishTransaction(tx *xrpl.TransactionAndMetadata, header xrpl.LedgerHeader) {
	cache := map[uint32][]byte{}
	msgFor := func(sess Session) []byte {
		version := sess.APIVersion()
		if version < 1 {
			version = 1
		}
		if msg, ok := cache[version]; ok {
			return msg
		}
		msg, err := json.Marshal(transactionEnvelope(tx, header, version))
		if err != nil {
			m.log.Error("marshal transaction envelope", zap.Error(err))
			return nil
		}
		cache[version] = msg
		return msg
	}

	for _, sess := range m.transactions.snapshot() {
		m.send(sess, msgFor(sess))
	}
	for _, sess := range m.txProposed.snapshot() {
		m.send(sess, msgFor(sess))
	}

	notified := make(map[uint64]bool)
	affected := tx.AffectedAccounts()
	for _, account := range affected {
		for _, sess := range m.accounts.snapshot(account) {
			if notified[sess.SessionID()] {
				continue
			}
			notified[sess.SessionID()] = true
			m.send(sess, msgFor(sess))
		}
	}
	for _, account := range affected {
		for _, sess := range m.accountsProposed.snapshot(account) {
			if notified[sess.SessionID()] {
				continue
			}
			notified[sess.SessionID()] = true
			m.send(sess, msgFor(sess))
		}
	}

	booksNotified := make(map[uint64]bool)
	for _, book := range tx.Books() {
		for _, sess := range m.books.snapshot(book.Key()) {
			if booksNotified[sess.SessionID()] {
				continue
			}
			booksNotified[sess.SessionID()] = true
			m.send(sess, msgFor(sess))
		}
	}
}

// Report returns the current subscriber count per stream; keyed topics
// report the aggregate across keys. Dead sessions are swept first.
func (m *SubscriptionManager) Report() map[string]any {
	return map[string]any{
		"ledger":                m.ledger.count(),
		"transactions":          m.transactions.count(),
		"transactions_proposed": m.txProposed.count(),
		"manifests":             m.manifests.count(),
		"validations":           m.validations.count(),
		"account":               m.accounts.count(),
		"accounts_proposed":     m.accountsProposed.count(),
		"books":                 m.books.count(),
		"book_changes":          m.bookChanges.count(),
	}
}

func (m *SubscriptionManager) send(sess Session, msg []byte) {
	if msg == nil || sess.Closed() {
		return
	}
	if err := sess.Send(msg); err != nil {
		m.log.Debug("send failed, dropping session",
			zap.Uint64("session", sess.SessionID()), zap.Error(err))
	}
}

// transactionEnvelope builds the push envelope for one validated
// transaction in the requested API dialect.
func transactionEnvelope(tx *xrpl.TransactionAndMetadata, header xrpl.LedgerHeader, version uint32) map[string]any {
	txJSON := make(map[string]any, len(tx.Transaction)+1)
	for k, v := range tx.Transaction {
		txJSON[k] = v
	}
	if txType, _ := txJSON["TransactionType"].(string); txType == "Payment" {
		if amount, ok := txJSON["Amount"]; ok {
			txJSON["DeliverMax"] = amount
			if version > 1 {
				delete(txJSON, "Amount")
			}
		}
	}

	result := tx.EngineResult()
	code, message := engineResultInfo(result)

	return map[string]any{
		"transaction":           txJSON,
		"meta":                  tx.Metadata,
		"type":                  "transaction",
		"validated":             true,
		"status":                "closed",
		"ledger_index":          header.Sequence,
		"ledger_hash":           header.Hash.String(),
		"engine_result":         result,
		"engine_result_code":    code,
		"engine_result_message": message,
		"close_time_iso":        header.CloseTimeISO(),
	}
}

// engineResultInfo maps a transaction result code string to its numeric
// code and human-readable message.
func engineResultInfo(result string) (int, string) {
	if info, ok := engineResults[result]; ok {
		return info.code, info.message
	}
	// unknown results still publish; the string code is authoritative
	return 0, ""
}

var engineResults = map[string]struct {
	code    int
	message string
}{
	"tesSUCCESS":        {0, "The transaction was applied. Only final in a validated ledger."},
	"tecCLAIM":          {100, "Fee claimed. Sequence used. No action."},
	"tecPATH_PARTIAL":   {101, "Path could not send full amount."},
	"tecUNFUNDED_OFFER": {103, "Insufficient balance to fund created offer."},
	"tecNO_DST":         {124, "Destination does not exist. Send XRP to create it."},
	"tecUNFUNDED":       {129, "Not enough XRP to satisfy the reserve requirement."},
	"tecNO_PERMISSION":  {139, "No permission to perform requested operation."},
	"tecKILLED":         {150, "No funds transferred and no offer created."},
}
