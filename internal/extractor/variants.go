package extractor

// DefaultVariants maps common surface forms to the canonical phrase used in
// the knowledge base. Canonical phrases always match themselves.
var DefaultVariants = map[string]string{
	"throat pain":          "sore throat",
	"scratchy throat":      "sore throat",
	"throat ache":          "sore throat",
	"sore throats":         "sore throat",
	"head ache":            "headache",
	"headaches":            "headache",
	"head pain":            "headache",
	"head hurts":           "headache",
	"high temperature":     "fever",
	"a temperature":        "fever",
	"raised temperature":   "fever",
	"feverish":             "fever",
	"fevers":               "fever",
	"coughing":             "cough",
	"coughs":               "cough",
	"tired":                "fatigue",
	"tiredness":            "fatigue",
	"exhausted":            "fatigue",
	"exhaustion":           "fatigue",
	"worn out":             "fatigue",
	"dizzy":                "dizziness",
	"lightheaded":          "dizziness",
	"light headed":         "dizziness",
	"vertigo":              "dizziness",
	"nauseous":             "nausea",
	"nauseated":            "nausea",
	"queasy":               "nausea",
	"sick to my stomach":   "nausea",
	"throwing up":          "vomiting",
	"threw up":             "vomiting",
	"vomit":                "vomiting",
	"puking":               "vomiting",
	"running nose":         "runny nose",
	"stuffy nose":          "congestion",
	"blocked nose":         "congestion",
	"stuffed up":           "congestion",
	"nasal congestion":     "congestion",
	"short of breath":      "shortness of breath",
	"breathless":           "shortness of breath",
	"can't breathe":        "shortness of breath",
	"cannot breathe":       "shortness of breath",
	"difficulty breathing": "shortness of breath",
	"trouble breathing":    "shortness of breath",
	"hard to breathe":      "shortness of breath",
	"chest pains":          "chest pain",
	"pain in my chest":     "chest pain",
	"chest hurts":          "chest pain",
	"tight chest":          "chest tightness",
	"stomach ache":         "stomach pain",
	"stomachache":          "stomach pain",
	"tummy ache":           "stomach pain",
	"belly pain":           "stomach pain",
	"abdominal pain":       "stomach pain",
	"stomach hurts":        "stomach pain",
	"tummy hurts":          "stomach pain",
	"belly hurts":          "stomach pain",
	"sneeze":               "sneezing",
	"sneezes":              "sneezing",
	"body aches":           "muscle aches",
	"aching muscles":       "muscle aches",
	"muscle pain":          "muscle aches",
	"sore muscles":         "muscle aches",
	"shivering":            "chills",
	"shivers":              "chills",
	"diarrhoea":            "diarrhea",
	"loose stools":         "diarrhea",
	"racing heart":         "palpitations",
	"heart racing":         "palpitations",
	"pounding heart":       "palpitations",
	"can't sleep":          "insomnia",
	"cannot sleep":         "insomnia",
	"trouble sleeping":     "insomnia",
	"anxious":              "anxiety",
	"thirsty":              "thirst",
	"peeing a lot":         "frequent urination",
	"urinating frequently": "frequent urination",
	"burning when i pee":   "painful urination",
	"pain when urinating":  "painful urination",
	"blurry vision":        "blurred vision",
	"sweaty":               "sweating",
	"sweats":               "sweating",
	"wheeze":               "wheezing",
	"wheezy":               "wheezing",
	"sensitive to light":   "sensitivity to light",
	"light sensitivity":    "sensitivity to light",
}

// DefaultNegationMarkers deny the symptom that follows them. Multi-word cues
// such as "don't have" are caught by their first token.
var DefaultNegationMarkers = []string{
	"no", "not", "never", "without", "none", "nor", "neither",
	"don't", "doesn't", "didn't", "haven't", "hasn't", "hadn't", "isn't", "aren't", "wasn't",
	"dont", "doesnt", "didnt", "havent", "hasnt",
	"deny", "denies", "denied",
}

// DefaultClauseBoundaries stop the negation lookback.
var DefaultClauseBoundaries = []string{"but", "however", "although", "though", "yet", "except"}

// DefaultLookbackWindow is how many preceding tokens are scanned for a negation marker.
const DefaultLookbackWindow = 3
