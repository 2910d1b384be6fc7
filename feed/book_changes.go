package feed

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/withObsrvr/xrpl-index-service/xrpl"
)

// BookChange summarizes the offer-crossing activity of one currency pair
// within a single ledger.
type BookChange struct {
	CurrencyA string
	CurrencyB string
	VolumeA   decimal.Decimal
	VolumeB   decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Open      decimal.Decimal
	Close     decimal.Decimal
}

func (c BookChange) asJSON() map[string]any {
	return map[string]any{
		"currency_a": c.CurrencyA,
		"currency_b": c.CurrencyB,
		"volume_a":   c.VolumeA.String(),
		"volume_b":   c.VolumeB.String(),
		"high":       c.High.String(),
		"low":        c.Low.String(),
		"open":       c.Open.String(),
		"close":      c.Close.String(),
	}
}

// ComputeBookChanges aggregates the traded deltas of every Offer node
// across the ledger's transactions. Created offers trade nothing; offers
// deleted by an explicit OfferCancel are excluded so cancellations do not
// read as trades.
func ComputeBookChanges(txs []*xrpl.TransactionAndMetadata) []BookChange {
	tally := make(map[string]*BookChange)

	for _, tx := range txs {
		var offerCancelSeq *uint32
		if txType, _ := tx.Transaction["TransactionType"].(string); txType == "OfferCancel" {
			if seq, ok := tx.Transaction["OfferSequence"].(float64); ok {
				s := uint32(seq)
				offerCancelSeq = &s
			}
		}
		for _, node := range tx.AffectedNodes() {
			handleOfferNode(tally, node, offerCancelSeq)
		}
	}

	keys := make([]string, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changes := make([]BookChange, 0, len(keys))
	for _, k := range keys {
		changes = append(changes, *tally[k])
	}
	return changes
}

func handleOfferNode(tally map[string]*BookChange, node xrpl.MetaNode, offerCancelSeq *uint32) {
	// only modified or deleted offers can have traded
	if node.EntryType != "Offer" || node.Kind == xrpl.NodeCreated {
		return
	}
	if node.FinalFields == nil || node.PreviousFields == nil {
		return
	}

	finalGets, err := xrpl.ParseAmount(node.FinalFields["TakerGets"])
	if err != nil {
		return
	}
	finalPays, err := xrpl.ParseAmount(node.FinalFields["TakerPays"])
	if err != nil {
		return
	}
	prevGets, err := xrpl.ParseAmount(node.PreviousFields["TakerGets"])
	if err != nil {
		return
	}
	prevPays, err := xrpl.ParseAmount(node.PreviousFields["TakerPays"])
	if err != nil {
		return
	}

	// filter out offers deleted by an explicit offer cancel
	if node.Kind == xrpl.NodeDeleted && offerCancelSeq != nil {
		if seq, ok := node.FinalFields["Sequence"].(float64); ok && uint32(seq) == *offerCancelSeq {
			return
		}
	}

	deltaGets := finalGets.Sub(prevGets)
	deltaPays := finalPays.Sub(prevPays)

	g := deltaGets.CurrencyKey()
	p := deltaPays.CurrencyKey()

	noswap := deltaGets.Issue.IsXRP()
	if !noswap && !deltaPays.Issue.IsXRP() {
		noswap = g < p
	}

	first, second := deltaGets, deltaPays
	if !noswap {
		first, second = deltaPays, deltaGets
	}

	if second.Value.IsZero() {
		return
	}
	rate := first.Value.Div(second.Value)

	volumeA := first.Value.Abs()
	volumeB := second.Value.Abs()

	key := first.CurrencyKey() + "|" + second.CurrencyKey()
	entry, ok := tally[key]
	if !ok {
		tally[key] = &BookChange{
			CurrencyA: first.CurrencyKey(),
			CurrencyB: second.CurrencyKey(),
			VolumeA:   volumeA,
			VolumeB:   volumeB,
			High:      rate,
			Low:       rate,
			Open:      rate,
			Close:     rate,
		}
		return
	}

	entry.VolumeA = entry.VolumeA.Add(volumeA)
	entry.VolumeB = entry.VolumeB.Add(volumeB)
	if entry.High.LessThan(rate) {
		entry.High = rate
	}
	if entry.Low.GreaterThan(rate) {
		entry.Low = rate
	}
	entry.Close = rate
}
