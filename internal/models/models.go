package models

type Company struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon"`
}

type PlatformDetection struct {
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	DownloadText string `json:"downloadText"`
	IOSLink      string `json:"iosLink"`
	AndroidLink  string `json:"androidLink"`
}

type Profile struct {
	Name              string            `json:"name"`
	Username          string            `json:"username"`
	Title             string            `json:"title"`
	Avatar            string            `json:"avatar"`
	Bio               string            `json:"bio"`
	Location          string            `json:"location"`
	Website           string            `json:"website"`
	ShareTitle        string            `json:"shareTitle"`
	SurpriseText      string            `json:"surpriseText"`
	SecretFeatureText string            `json:"secretFeatureText"`
	RepositoriesTitle string            `json:"repositoriesTitle"`
	Verified          bool              `json:"verified"`
	Company           Company           `json:"company"`
	ClickMeText       string            `json:"clickMeText"`
	ClickAgainText    string            `json:"clickAgainText"`
	ViewedFromText    string            `json:"viewedFromText"`
	PlatformDetection PlatformDetection `json:"platformDetection"`
}

type SEO struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Keywords           []string `json:"keywords"`
	OGImage            string   `json:"ogImage"`
	TwitterCard        string   `json:"twitterCard"`
	SiteName           string   `json:"siteName"`
	MetadataBase       string   `json:"metadataBase"`
	GoogleVerification string   `json:"googleVerification,omitempty"`
}

type Link struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Featured    bool   `json:"featured"`
}

type Favorite struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	URL           string `json:"url"`
	Stars         int    `json:"stars"`
	Language      string `json:"language"`
	LanguageColor string `json:"languageColor"`
}

type Credit struct {
	TextBefore string `json:"textBefore"`
	TextAfter  string `json:"textAfter"`
	URL        string `json:"url"`
	Logo       string `json:"logo"`
}

type Footer struct {
	Text          string `json:"text"`
	GithubURL     string `json:"githubUrl"`
	RepositoryURL string `json:"repositoryUrl"`
	Badge         string `json:"badge"`
	Year          int    `json:"year"`
	Cursor        Credit `json:"cursor"`
}

// BioDocument is the page content published under the "bio" key of the
// remote configuration store.
type BioDocument struct {
	Profile   Profile    `json:"profile"`
	SEO       SEO        `json:"seo"`
	Links     []Link     `json:"links"`
	Favorites []Favorite `json:"favorites"`
	Footer    Footer     `json:"footer"`
}

type IndexPageData struct {
	Profile     Profile
	SEO         SEO
	Featured    []Link
	Additional  []Link
	Favorites   []Favorite
	Footer      Footer
	Platform    string
	LastUpdated string
}

type LoadingPageData struct {
	Status     string
	Generation uint64
}

type ErrorPageData struct {
	Title   string
	Message string
	Code    string
}

type AdminPageData struct {
	Phase      string
	Status     string
	Message    string
	Code       string
	Backend    string
	CanPublish bool
	Generation uint64
	UpdatedAt  string
	Profile    *Profile
	LinkCount  int
	BioJSON    string
	Flash      string
	Error      string
}
