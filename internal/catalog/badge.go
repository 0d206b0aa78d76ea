package catalog

type Badge string

const (
	BadgeNone        Badge = ""
	BadgePopular     Badge = "popular"
	BadgeTrending    Badge = "trending"
	BadgeNew         Badge = "new"
	BadgeBestseller  Badge = "bestseller"
	BadgeRecommended Badge = "recommended"
)

const (
	POPULAR_VIEWS_THRESHOLD  = 80
	TRENDING_VIEWS_THRESHOLD = 150
)

func (b Badge) Valid() bool {
	switch b {
	case BadgeNone, BadgePopular, BadgeTrending, BadgeNew, BadgeBestseller, BadgeRecommended:
		return true
	}
	return false
}

// EffectiveBadge prefers the manual badge and otherwise derives one from views.
func EffectiveBadge(manual Badge, views int64) Badge {
	if manual != BadgeNone {
		return manual
	}
	switch {
	case views > TRENDING_VIEWS_THRESHOLD:
		return BadgeTrending
	case views > POPULAR_VIEWS_THRESHOLD:
		return BadgePopular
	}
	return BadgeNone
}
