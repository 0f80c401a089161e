// Package scoring computes the five-factor confidence score over
// candidate signals: hard gates first, then a weighted sum banded into
// HIGH / WATCHLIST / SUPPRESSED.
package scoring

// clamp bounds x to [0, 1].
func clamp(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// accelerationScore maps a share-of-voice delta in percentage points to
// [0.20, 0.95]. Flat or shrinking share floors at 0.20; a two-point
// daily move saturates.
func accelerationScore(deltaPct float64) float64 {
	if deltaPct <= 0 {
		return 0.20
	}
	if deltaPct >= 2.0 {
		return 0.95
	}
	return clamp(0.20 + (deltaPct/2.0)*0.75)
}

// intentScore maps the action-intent rate to [0.20, 0.95] with a knee at
// 20% (score 0.65): the first committed voices count more than the long
// tail toward saturation at 50%.
func intentScore(actionIntentRate float64) float64 {
	r := actionIntentRate
	if r <= 0 {
		return 0.20
	}
	if r >= 0.50 {
		return 0.95
	}
	if r <= 0.20 {
		return clamp(0.20 + (r/0.20)*0.45)
	}
	return clamp(0.65 + ((r-0.20)/0.30)*0.30)
}

// spreadScore rewards corroboration across communities and platforms.
// A single source scores zero; four independent sources saturate.
func spreadScore(sourceCount, platformCount int) float64 {
	raw := float64(sourceCount-1) / 3.0
	if p := float64(platformCount-1) / 3.0; p > raw {
		raw = p
	}
	return clamp(raw)
}

// suppressionScore inverts meme risk: hype-heavy chatter with little
// action language scores low and trips the suppression gate.
func suppressionScore(memeRisk float64) float64 {
	return clamp(1.0 - clamp(memeRisk))
}

// baselineScore maps daily message volume to [0.20, 0.95]. One message
// floors; twenty saturate.
func baselineScore(msgCount int) float64 {
	n := msgCount
	if n <= 1 {
		return 0.20
	}
	if n >= 20 {
		return 0.95
	}
	return clamp(0.20 + (float64(n)/20.0)*0.75)
}
