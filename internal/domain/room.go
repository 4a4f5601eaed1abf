package domain

import "strings"

// DefaultRoom is the room a connection lands in when none is requested.
const DefaultRoom = "Global"

// CountryRoomPrefix scopes a room to a single country, e.g. "country-TR".
const CountryRoomPrefix = "country-"

// ContinentalRooms is the fixed set of always-valid chat rooms.
var ContinentalRooms = []string{
	"Global",
	"Europe",
	"Asia",
	"North-America",
	"South-America",
	"Africa",
	"Oceania",
}

// IsValidRoom reports whether a room identifier is acceptable: either one of
// the fixed continental rooms or a country-scoped room with a recognized code.
func IsValidRoom(room string) bool {
	for _, r := range ContinentalRooms {
		if room == r {
			return true
		}
	}
	if code, ok := strings.CutPrefix(room, CountryRoomPrefix); ok {
		_, known := countryNames[code]
		return known
	}
	return false
}

// CountryRoom returns the country-scoped room identifier for a code.
func CountryRoom(code string) string {
	return CountryRoomPrefix + code
}

// IsKnownCountry reports whether the ISO code is in the recognized set.
func IsKnownCountry(code string) bool {
	_, ok := countryNames[code]
	return ok
}

// CountryName resolves an ISO code to a display name, falling back to the
// code itself for unknown entries.
func CountryName(code string) string {
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}

// FlagPath returns the asset path for a country's flag image.
func FlagPath(code string) string {
	return "assets/flags/" + strings.ToLower(code) + ".png"
}

// ContinentalRoomOf maps a country code to its continental room, defaulting
// to the global room for unknown codes.
func ContinentalRoomOf(code string) string {
	for room, codes := range continentCodes {
		for _, c := range codes {
			if c == code {
				return room
			}
		}
	}
	return DefaultRoom
}

var continentCodes = map[string][]string{
	"North-America": {"US", "CA", "MX", "CU", "DO", "GT", "HN", "JM", "PA", "AG", "AI", "AW", "BB", "BL", "BM", "BS", "BZ", "CR", "DM", "GD", "GL", "GP", "GU", "HT", "KN", "KY", "LC", "MF", "MP", "MQ", "MS", "NI", "PR", "SX", "TC", "TT", "VC", "VG", "VI"},
	"South-America": {"BR", "AR", "CO", "PE", "CL", "VE", "EC", "BO", "PY", "UY", "GY", "SR", "GF", "FK"},
	"Europe":        {"GB", "DE", "FR", "IT", "ES", "NL", "SE", "NO", "TR", "BE", "AT", "CH", "PT", "GR", "PL", "CZ", "HU", "RO", "UA", "IE", "DK", "FI", "IS", "LU", "MT", "CY", "BG", "HR", "RS", "SK", "SI", "LT", "LV", "EE", "AL", "BA", "ME", "MD", "MK", "RU", "AD", "AX", "BY", "FO", "GG", "GI", "IM", "JE", "LI", "MC", "SM", "SJ", "VA", "XK", "GB-ENG", "GB-NIR", "GB-SCT", "GB-WLS"},
	"Asia":          {"JP", "KR", "CN", "IN", "ID", "PH", "VN", "TH", "MY", "SG", "PK", "BD", "IR", "SA", "AE", "IQ", "SY", "IL", "JO", "LB", "KW", "QA", "BH", "OM", "YE", "AZ", "GE", "AM", "KZ", "UZ", "KG", "TJ", "TM", "AF", "NP", "LK", "MM", "LA", "KH", "BN", "TL", "BT", "MV", "HK", "IO", "KP", "MO", "PS", "TW"},
	"Oceania":       {"AU", "NZ", "PG", "FJ", "SB", "VU", "NC", "PF", "AS", "CK", "FM", "KI", "MH", "NR", "NU", "PW", "TK", "TO", "TV", "UM", "WF", "WS"},
	"Africa":        {"EG", "ZA", "NG", "ET", "KE", "TZ", "DZ", "MA", "SD", "CD", "AO", "GH", "CI", "CM", "UG", "MZ", "MG", "ML", "BF", "NE", "BJ", "TG", "SL", "LR", "GW", "GM", "SN", "MR", "EH", "LY", "TN", "ER", "DJ", "SO", "RW", "BI", "ZM", "ZW", "MW", "LS", "SZ", "NA", "BW", "GA", "CG", "GQ", "CF", "TD", "SS", "KM", "SC", "MU", "CV", "ST", "RE", "YT"},
}

var countryNames = map[string]string{
	"AD": "Andorra", "AE": "United Arab Emirates", "AF": "Afghanistan",
	"AG": "Antigua and Barbuda", "AI": "Anguilla", "AL": "Albania",
	"AM": "Armenia", "AO": "Angola", "AQ": "Antarctica", "AR": "Argentina",
	"AS": "American Samoa", "AT": "Austria", "AU": "Australia", "AW": "Aruba",
	"AX": "Åland Islands", "AZ": "Azerbaijan", "BA": "Bosnia and Herzegovina",
	"BB": "Barbados", "BD": "Bangladesh", "BE": "Belgium", "BF": "Burkina Faso",
	"BG": "Bulgaria", "BH": "Bahrain", "BI": "Burundi", "BJ": "Benin",
	"BL": "Saint Barthélemy", "BM": "Bermuda", "BN": "Brunei Darussalam",
	"BO": "Bolivia", "BQ": "Bonaire, Sint Eustatius and Saba", "BR": "Brazil",
	"BS": "Bahamas", "BT": "Bhutan", "BV": "Bouvet Island", "BW": "Botswana",
	"BY": "Belarus", "BZ": "Belize", "CA": "Canada",
	"CC": "Cocos (Keeling) Islands", "CD": "Congo, Democratic Republic of the",
	"CF": "Central African Republic", "CG": "Congo", "CH": "Switzerland",
	"CI": "Côte d'Ivoire", "CK": "Cook Islands", "CL": "Chile", "CM": "Cameroon",
	"CN": "China", "CO": "Colombia", "CR": "Costa Rica", "CU": "Cuba",
	"CV": "Cabo Verde", "CW": "Curaçao", "CX": "Christmas Island", "CY": "Cyprus",
	"CZ": "Czechia", "DE": "Germany", "DJ": "Djibouti", "DK": "Denmark",
	"DM": "Dominica", "DO": "Dominican Republic", "DZ": "Algeria", "EC": "Ecuador",
	"EE": "Estonia", "EG": "Egypt", "EH": "Western Sahara", "ER": "Eritrea",
	"ES": "Spain", "ET": "Ethiopia", "FI": "Finland", "FJ": "Fiji",
	"FK": "Falkland Islands (Malvinas)", "FM": "Micronesia", "FO": "Faroe Islands",
	"FR": "France", "GA": "Gabon", "GB": "United Kingdom", "GB-ENG": "England",
	"GB-NIR": "Northern Ireland", "GB-SCT": "Scotland", "GB-WLS": "Wales",
	"GD": "Grenada", "GE": "Georgia", "GF": "French Guiana", "GG": "Guernsey",
	"GH": "Ghana", "GI": "Gibraltar", "GL": "Greenland", "GM": "Gambia",
	"GN": "Guinea", "GP": "Guadeloupe", "GQ": "Equatorial Guinea", "GR": "Greece",
	"GS": "South Georgia and the South Sandwich Islands", "GT": "Guatemala",
	"GU": "Guam", "GW": "Guinea-Bissau", "GY": "Guyana", "HK": "Hong Kong",
	"HM": "Heard Island and McDonald Islands", "HN": "Honduras", "HR": "Croatia",
	"HT": "Haiti", "HU": "Hungary", "ID": "Indonesia", "IE": "Ireland",
	"IL": "Israel", "IM": "Isle of Man", "IN": "India",
	"IO": "British Indian Ocean Territory", "IQ": "Iraq", "IR": "Iran",
	"IS": "Iceland", "IT": "Italy", "JE": "Jersey", "JM": "Jamaica",
	"JO": "Jordan", "JP": "Japan", "KE": "Kenya", "KG": "Kyrgyzstan",
	"KH": "Cambodia", "KI": "Kiribati", "KM": "Comoros",
	"KN": "Saint Kitts and Nevis", "KP": "North Korea", "KR": "South Korea",
	"KW": "Kuwait", "KY": "Cayman Islands", "KZ": "Kazakhstan", "LA": "Laos",
	"LB": "Lebanon", "LC": "Saint Lucia", "LI": "Liechtenstein",
	"LK": "Sri Lanka", "LR": "Liberia", "LS": "Lesotho", "LT": "Lithuania",
	"LU": "Luxembourg", "LV": "Latvia", "LY": "Libya", "MA": "Morocco",
	"MC": "Monaco", "MD": "Moldova", "ME": "Montenegro",
	"MF": "Saint Martin (French part)", "MG": "Madagascar",
	"MH": "Marshall Islands", "MK": "North Macedonia", "ML": "Mali",
	"MM": "Myanmar", "MN": "Mongolia", "MO": "Macao",
	"MP": "Northern Mariana Islands", "MQ": "Martinique", "MR": "Mauritania",
	"MS": "Montserrat", "MT": "Malta", "MU": "Mauritius", "MV": "Maldives",
	"MW": "Malawi", "MX": "Mexico", "MY": "Malaysia", "MZ": "Mozambique",
	"NA": "Namibia", "NC": "New Caledonia", "NE": "Niger", "NF": "Norfolk Island",
	"NG": "Nigeria", "NI": "Nicaragua", "NL": "Netherlands", "NO": "Norway",
	"NP": "Nepal", "NR": "Nauru", "NU": "Niue", "NZ": "New Zealand", "OM": "Oman",
	"PA": "Panama", "PE": "Peru", "PF": "French Polynesia",
	"PG": "Papua New Guinea", "PH": "Philippines", "PK": "Pakistan",
	"PL": "Poland", "PM": "Saint Pierre and Miquelon", "PN": "Pitcairn",
	"PR": "Puerto Rico", "PS": "Palestine, State of", "PT": "Portugal",
	"PW": "Palau", "PY": "Paraguay", "QA": "Qatar", "RE": "Réunion",
	"RO": "Romania", "RS": "Serbia", "RU": "Russian Federation", "RW": "Rwanda",
	"SA": "Saudi Arabia", "SB": "Solomon Islands", "SC": "Seychelles",
	"SD": "Sudan", "SE": "Sweden", "SG": "Singapore",
	"SH": "Saint Helena, Ascension and Tristan da Cunha", "SI": "Slovenia",
	"SJ": "Svalbard and Jan Mayen", "SK": "Slovakia", "SL": "Sierra Leone",
	"SM": "San Marino", "SN": "Senegal", "SO": "Somalia", "SR": "Suriname",
	"SS": "South Sudan", "ST": "Sao Tome and Principe", "SV": "El Salvador",
	"SX": "Sint Maarten (Dutch part)", "SY": "Syrian Arab Republic",
	"SZ": "Eswatini", "TC": "Turks and Caicos Islands", "TD": "Chad",
	"TF": "French Southern Territories", "TG": "Togo", "TH": "Thailand",
	"TJ": "Tajikistan", "TK": "Tokelau", "TL": "Timor-Leste",
	"TM": "Turkmenistan", "TN": "Tunisia", "TO": "Tonga", "TR": "Turkey",
	"TT": "Trinidad and Tobago", "TV": "Tuvalu", "TW": "Taiwan",
	"TZ": "Tanzania", "UA": "Ukraine", "UG": "Uganda",
	"UM": "United States Minor Outlying Islands",
	"US": "United States of America", "UY": "Uruguay", "UZ": "Uzbekistan",
	"VA": "Holy See", "VC": "Saint Vincent and the Grenadines",
	"VE": "Venezuela", "VG": "Virgin Islands (British)",
	"VI": "Virgin Islands (U.S.)", "VN": "Viet Nam", "VU": "Vanuatu",
	"WF": "Wallis and Futuna", "WS": "Samoa", "XK": "Kosovo", "YE": "Yemen",
	"YT": "Mayotte", "ZA": "South Africa", "ZM": "Zambia", "ZW": "Zimbabwe",
}
