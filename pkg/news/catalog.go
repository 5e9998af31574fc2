package news

// Feed is one RSS or Atom feed.
type Feed struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Category groups feeds with a similar editorial slant. Each run samples
// one feed from every category so no single viewpoint dominates the pool.
type Category struct {
	Name  string `json:"name" yaml:"name"`
	Feeds []Feed `json:"feeds" yaml:"feeds"`
}

// DefaultCatalog returns the built-in feed catalog.
func DefaultCatalog() []Category {
	return []Category{
		{Name: "mainstream", Feeds: []Feed{
			{Name: "christianityToday", URL: "https://www.christianitytoday.com/feeds/rss"},
			{Name: "relevantMagazine", URL: "https://relevantmagazine.com/feed"},
			{Name: "faithwire", URL: "https://www.faithwire.com/feed/"},
			{Name: "christianPost", URL: "https://www.christianpost.com/feed/"},
		}},
		{Name: "catholic", Feeds: []Feed{
			{Name: "catholicNewsAgency", URL: "https://www.catholicnewsagency.com/feed"},
			{Name: "americaMagazine", URL: "https://www.americamagazine.org/feed"},
			{Name: "nationalCatholicRegister", URL: "https://www.ncregister.com/feed"},
		}},
		{Name: "progressive", Feeds: []Feed{
			{Name: "sojourners", URL: "https://sojo.net/feed"},
		}},
		{Name: "evangelical", Feeds: []Feed{
			{Name: "theGospelCoalition", URL: "https://www.thegospelcoalition.org/feed/"},
			{Name: "desiringGod", URL: "https://www.desiringgod.org/feed/rss"},
		}},
		{Name: "secular-religion", Feeds: []Feed{
			{Name: "nprReligion", URL: "https://feeds.npr.org/1007/rss.xml"},
			{Name: "apReligion", URL: "https://apnews.com/rss/religion"},
			{Name: "reutersReligion", URL: "https://www.reuters.com/rssFeed/worldFaith"},
		}},
		{Name: "culture", Feeds: []Feed{
			{Name: "atlantic", URL: "https://www.theatlantic.com/feed/all/"},
			{Name: "newYorker", URL: "https://www.newyorker.com/feed/rss"},
			{Name: "vox", URL: "https://www.vox.com/rss/index.xml"},
		}},
		{Name: "political", Feeds: []Feed{
			{Name: "firstThings", URL: "https://www.firstthings.com/feed"},
			{Name: "publicDiscourse", URL: "https://www.thepublicdiscourse.com/feed"},
		}},
		{Name: "academic", Feeds: []Feed{
			{Name: "christianCentury", URL: "https://www.christiancentury.org/rss.xml"},
			{Name: "commonweal", URL: "https://www.commonwealmagazine.org/feed"},
		}},
		{Name: "mystical", Feeds: []Feed{
			{Name: "richardRohr", URL: "https://cac.org/feed/"},
			{Name: "contemplativePractices", URL: "https://www.contemplative.org/feed/"},
		}},
		{Name: "culture-war", Feeds: []Feed{
			{Name: "theFederalist", URL: "https://www.thefederalist.com/feed/"},
		}},
		{Name: "international", Feeds: []Feed{
			{Name: "bbcReligion", URL: "https://www.bbc.co.uk/news/religion_and_ethics/rss.xml"},
			{Name: "euronewsReligion", URL: "https://www.euronews.com/tag/religion/rss"},
		}},
	}
}
