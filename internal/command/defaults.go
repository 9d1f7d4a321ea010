package command

// DefaultDefinitions is the production lookup command set. Endpoint URLs and
// audit tags mirror the deployed configuration; the registry built from them
// is immutable at runtime.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "num", URLTemplate: "https://num-free-rootx-jai-shree-ram-14-day.vercel.app/?key=lundkinger&number={query}", AuditTag: "NUM", ExtraClean: true},
		{Name: "adr", URLTemplate: "https://api-ij32.onrender.com/aadhar?match={query}", AuditTag: "ADR"},
		{Name: "tg2num", URLTemplate: "https://tg2num-owner-api.vercel.app/?userid={query}", AuditTag: "TG2NUM"},
		{Name: "vehicle", URLTemplate: "https://vehicle-info-aco-api.vercel.app/info?vehicle={query}", AuditTag: "VEHICLE"},
		{Name: "vchalan", URLTemplate: "https://api.b77bf911.workers.dev/vehicle?registration={query}", AuditTag: "VCHALAN"},
		{Name: "ip", URLTemplate: "https://abbas-apis.vercel.app/api/ip?ip={query}", AuditTag: "IP"},
		{Name: "email", URLTemplate: "https://abbas-apis.vercel.app/api/email?mail={query}", AuditTag: "EMAIL"},
		{Name: "ffinfo", URLTemplate: "https://official-free-fire-info.onrender.com/player-info?key=DV_M7-INFO_API&uid={query}", AuditTag: "FFINFO"},
		{Name: "ffban", URLTemplate: "https://abbas-apis.vercel.app/api/ff-ban?uid={query}", AuditTag: "FFBAN"},
		{Name: "pin", URLTemplate: "https://api.postalpincode.in/pincode/{query}", AuditTag: "PIN"},
		{Name: "ifsc", URLTemplate: "https://abbas-apis.vercel.app/api/ifsc?ifsc={query}", AuditTag: "IFSC"},
		{Name: "gst", URLTemplate: "https://api.b77bf911.workers.dev/gst?number={query}", AuditTag: "GST"},
		{Name: "insta", URLTemplate: "https://mkhossain.alwaysdata.net/instanum.php?username={query}", AuditTag: "INSTA"},
		{Name: "tginfo", URLTemplate: "https://openosintx.vippanel.in/tgusrinfo.php?key=OpenOSINTX-FREE&user={query}", AuditTag: "TGINFO"},
		{Name: "tginfopro", URLTemplate: "https://api.b77bf911.workers.dev/telegram?user={query}", AuditTag: "TGINFOPRO"},
		{Name: "git", URLTemplate: "https://abbas-apis.vercel.app/api/github?username={query}", AuditTag: "GIT"},
		{Name: "pak", URLTemplate: "https://abbas-apis.vercel.app/api/pakistan?number={query}", AuditTag: "PAK"},
	}
}

// DefaultAuditChannels maps audit tags to their log channel destinations.
func DefaultAuditChannels() map[string]int64 {
	return map[string]int64{
		"NUM":       -1003482423742,
		"ADR":       -1003482423742,
		"IFSC":      -1003624886596,
		"EMAIL":     -1003431549612,
		"GST":       -1003634866992,
		"VEHICLE":   -1003237155636,
		"PIN":       -1003677285823,
		"INSTA":     -1003498414978,
		"GIT":       -1003576017442,
		"PAK":       -1003663672738,
		"IP":        -1003665811220,
		"FFINFO":    -1003588577282,
		"FFBAN":     -1003521974255,
		"TG2NUM":    -1003642820243,
		"VCHALAN":   -1003237155636,
		"TGINFO":    -1003643170105,
		"TGINFOPRO": -1003643170105,
	}
}
