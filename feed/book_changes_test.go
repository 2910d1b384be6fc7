package feed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/xrpl-index-service/xrpl"
)

func TestPubBookChanges(t *testing.T) {
	m := newTestManager(t, &mockBackend{})
	sess := newMockSession(1)

	m.SubBookChanges(sess)
	require.Equal(t, 1, m.Report()["book_changes"])

	header := mustHeader(t, ledgerHash, 32)
	tx := &xrpl.TransactionAndMetadata{
		Transaction:    paymentTransaction(),
		Metadata:       bookChangeMeta(currency, issuer, 22, "1", "3", "3", "1"),
		LedgerSequence: 32,
	}
	m.PubBookChanges(header, []*xrpl.TransactionAndMetadata{tx})

	require.Equal(t, 1, sess.sendCount())
	require.JSONEq(t, `{
		"type":"bookChanges",
		"ledger_index":32,
		"ledger_hash":"4BC50C9B0D8515D3EAAE1E74B29A95804346C491EE1A95BF25E4AAB854A6A652",
		"ledger_time":0,
		"changes":
		[
			{
				"currency_a":"XRP_drops",
				"currency_b":"rK9DrarGKnVEo2nYp5MfVRXRYf5yRX3mwD/0158415500000000C1F76FF6ECB0BAC600000000",
				"volume_a":"2",
				"volume_b":"2",
				"high":"-1",
				"low":"-1",
				"open":"-1",
				"close":"-1"
			}
		]
	}`, string(sess.lastSent()))

	m.UnsubBookChanges(sess)
	require.Equal(t, 0, m.Report()["book_changes"])
}

func TestComputeBookChangesAggregatesPairs(t *testing.T) {
	// two crossings of the same pair in one ledger combine into one entry
	tx1 := &xrpl.TransactionAndMetadata{
		Transaction: paymentTransaction(),
		Metadata:    bookChangeMeta(currency, issuer, 1, "1", "3", "3", "1"),
	}
	tx2 := &xrpl.TransactionAndMetadata{
		Transaction: paymentTransaction(),
		Metadata:    bookChangeMeta(currency, issuer, 2, "2", "8", "6", "2"),
	}

	changes := ComputeBookChanges([]*xrpl.TransactionAndMetadata{tx1, tx2})
	require.Len(t, changes, 1)

	change := changes[0]
	require.Equal(t, "XRP_drops", change.CurrencyA)
	require.Equal(t, issuer+"/"+currency, change.CurrencyB)
	// volumes accumulate: |−2|+|−4| and |2|+|6|
	require.Equal(t, "6", change.VolumeA.String())
	require.Equal(t, "8", change.VolumeB.String())
	// rates: first -1, then -4/6; open and low stay at the first rate,
	// high and close land on the second
	require.Equal(t, "-1", change.Open.String())
	require.Equal(t, "-1", change.Low.String())
	require.True(t, change.High.Equal(change.Close))
	require.True(t, change.High.GreaterThan(change.Low))
}

func TestComputeBookChangesSkipsCreatedOffers(t *testing.T) {
	tx := &xrpl.TransactionAndMetadata{
		Transaction: paymentTransaction(),
		Metadata: map[string]any{
			"AffectedNodes": []any{
				map[string]any{
					"CreatedNode": map[string]any{
						"LedgerEntryType": "Offer",
						"NewFields": map[string]any{
							"TakerGets": "5",
							"TakerPays": map[string]any{"currency": currency, "issuer": issuer, "value": "5"},
						},
					},
				},
			},
		},
	}
	require.Empty(t, ComputeBookChanges([]*xrpl.TransactionAndMetadata{tx}))
}

func TestComputeBookChangesSkipsExplicitCancel(t *testing.T) {
	cancelTx := map[string]any{
		"TransactionType": "OfferCancel",
		"OfferSequence":   float64(7),
	}
	tx := &xrpl.TransactionAndMetadata{
		Transaction: cancelTx,
		Metadata: map[string]any{
			"AffectedNodes": []any{
				map[string]any{
					"DeletedNode": map[string]any{
						"LedgerEntryType": "Offer",
						"FinalFields": map[string]any{
							"Sequence":  float64(7),
							"TakerGets": "0",
							"TakerPays": map[string]any{"currency": currency, "issuer": issuer, "value": "0"},
						},
						"PreviousFields": map[string]any{
							"TakerGets": "4",
							"TakerPays": map[string]any{"currency": currency, "issuer": issuer, "value": "2"},
						},
					},
				},
			},
		},
	}
	require.Empty(t, ComputeBookChanges([]*xrpl.TransactionAndMetadata{tx}))
}
