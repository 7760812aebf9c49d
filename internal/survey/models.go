package survey

// CompanySize buckets the prospect's headcount
type CompanySize string

const (
	CompanySizeSolo       CompanySize = "solo"
	CompanySizeSmall      CompanySize = "2-10"
	CompanySizeMedium     CompanySize = "11-50"
	CompanySizeLarge      CompanySize = "51-200"
	CompanySizeEnterprise CompanySize = "200+"
)

// Answers is everything the prospect told us in the questionnaire
type Answers struct {
	BusinessName string            `json:"businessName" validate:"required,max=120"`
	ContactName  string            `json:"contactName" validate:"required,max=120"`
	Email        string            `json:"email" validate:"required,email,max=254"`
	Phone        string            `json:"phone,omitempty" validate:"omitempty,max=40"`
	Website      string            `json:"website,omitempty" validate:"omitempty,url,max=2048"`
	Industry     string            `json:"industry" validate:"required,max=120"`
	CompanySize  CompanySize       `json:"companySize" validate:"required,oneof=solo 2-10 11-50 51-200 200+"`
	Goals        []string          `json:"goals" validate:"required,min=1,max=10,dive,required,max=500"`
	Challenges   []string          `json:"challenges,omitempty" validate:"max=10,dive,required,max=500"`
	CurrentTools []string          `json:"currentTools,omitempty" validate:"max=30,dive,required,max=120"`
	Budget       string            `json:"budget,omitempty" validate:"max=120"`
	Timeline     string            `json:"timeline,omitempty" validate:"max=120"`
	Responses    map[string]string `json:"responses,omitempty" validate:"max=40,dive,keys,required,max=200,endkeys,max=4000"`
	Discovery    []DiscoveryAnswer `json:"discovery,omitempty" validate:"max=12,dive"`
}

// Question is a personalized follow-up question proposed by the LLM
type Question struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Type      string   `json:"type"`
	Options   []string `json:"options,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
}

// Question types
const (
	QuestionText   = "text"
	QuestionChoice = "choice"
)

// DiscoveryAnswer is the prospect's answer to one generated question
type DiscoveryAnswer struct {
	QuestionID string `json:"questionId" validate:"required,max=40"`
	Question   string `json:"question" validate:"required,max=500"`
	Answer     string `json:"answer" validate:"max=4000"`
}
