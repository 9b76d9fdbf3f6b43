package catalog

// MaxPages is the deepest page the catalog will serve for any listing.
const MaxPages = 500

// Movie is a catalog listing entry. Trending results mix movies and TV shows,
// which carry Name/FirstAirDate instead of Title/ReleaseDate.
type Movie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title,omitempty"`
	Name             string  `json:"name,omitempty"`
	OriginalTitle    string  `json:"original_title,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
	Overview         string  `json:"overview,omitempty"`
	PosterPath       string  `json:"poster_path,omitempty"`
	BackdropPath     string  `json:"backdrop_path,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	FirstAirDate     string  `json:"first_air_date,omitempty"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity,omitempty"`
	MediaType        string  `json:"media_type,omitempty"`
	GenreIDs         []int   `json:"genre_ids,omitempty"`
	Adult            bool    `json:"adult"`
}

// DisplayTitle returns the title, falling back to the TV name.
func (m Movie) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Name
}

// DisplayDate returns the release date, falling back to the first air date.
func (m Movie) DisplayDate() string {
	if m.ReleaseDate != "" {
		return m.ReleaseDate
	}
	return m.FirstAirDate
}

// MoviePage is one page of a listing or search.
type MoviePage struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type ProductionCompany struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	LogoPath      string `json:"logo_path,omitempty"`
	OriginCountry string `json:"origin_country,omitempty"`
}

type Collection struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	PosterPath   string `json:"poster_path,omitempty"`
	BackdropPath string `json:"backdrop_path,omitempty"`
}

type SpokenLanguage struct {
	ISO6391     string `json:"iso_639_1"`
	EnglishName string `json:"english_name"`
	Name        string `json:"name,omitempty"`
}

type CastMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character,omitempty"`
	ProfilePath string `json:"profile_path,omitempty"`
	Order       int    `json:"order"`
}

type CrewMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job"`
	Department  string `json:"department,omitempty"`
	ProfilePath string `json:"profile_path,omitempty"`
}

type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// Directors returns the crew members credited as director.
func (c *Credits) Directors() []CrewMember {
	if c == nil {
		return nil
	}
	var out []CrewMember
	for _, m := range c.Crew {
		if m.Job == "Director" {
			out = append(out, m)
		}
	}
	return out
}

// MovieDetails is the full record for a single movie, including credits.
type MovieDetails struct {
	Movie
	Tagline             string              `json:"tagline,omitempty"`
	Homepage            string              `json:"homepage,omitempty"`
	IMDbID              string              `json:"imdb_id,omitempty"`
	Status              string              `json:"status,omitempty"`
	Runtime             int                 `json:"runtime,omitempty"`
	Budget              int64               `json:"budget,omitempty"`
	Revenue             int64               `json:"revenue,omitempty"`
	Genres              []Genre             `json:"genres,omitempty"`
	ProductionCompanies []ProductionCompany `json:"production_companies,omitempty"`
	BelongsToCollection *Collection         `json:"belongs_to_collection,omitempty"`
	SpokenLanguages     []SpokenLanguage    `json:"spoken_languages,omitempty"`
	Credits             *Credits            `json:"credits,omitempty"`
}
