package questions

// Gate decides which tests and training sets need premium access.
type Gate struct {
	FreeTests         int
	FreeTrainingSets  int
	ReferralsToUnlock int
}

func DefaultGate() Gate {
	return Gate{
		FreeTests:         3,
		FreeTrainingSets:  2,
		ReferralsToUnlock: 3,
	}
}

// IsUnlocked reports whether the n-th item (1-based) is available given the
// first free items count. Subscribers and users with enough referrals get
// everything.
func IsUnlocked(n, free int, subscribed bool, referralCount, referralsToUnlock int) bool {
	if n <= free {
		return true
	}
	if subscribed {
		return true
	}
	return referralsToUnlock > 0 && referralCount >= referralsToUnlock
}

func (g Gate) TestUnlocked(testNumber int, subscribed bool, referralCount int) bool {
	return IsUnlocked(testNumber, g.FreeTests, subscribed, referralCount, g.ReferralsToUnlock)
}

func (g Gate) TrainingSetUnlocked(setIndex int, subscribed bool, referralCount int) bool {
	return IsUnlocked(setIndex, g.FreeTrainingSets, subscribed, referralCount, g.ReferralsToUnlock)
}
