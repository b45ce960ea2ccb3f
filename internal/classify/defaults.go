package classify

// defaultSignatureFile is the built-in pattern set used when no external
// signature file is configured: known drone-manufacturer OUIs, SSID
// fingerprint patterns, and DJI SSID model codes.
func defaultSignatureFile() signatureFile {
	sf := signatureFile{
		OUIMap: map[string]string{
			"60:60:1F": "DJI (drone)",
			"34:D2:62": "DJI (drone)",
			"48:1C:B9": "DJI (drone)",
			"E0:B6:55": "DJI (drone)",
			"90:3A:E6": "Parrot (drone)",
			"A0:14:3D": "Parrot (drone)",
			"00:26:7E": "Parrot (drone)",
			"48:A2:E6": "Autel Robotics (drone)",
			"FC:A8:9A": "Autel Robotics (drone)",
			"D0:A6:37": "Skydio (drone)",
			"60:60:1A": "Yuneec (drone)",
			"EC:3D:FD": "Yuneec (drone)",
		},
		DJISSIDModels: map[string]string{
			"MINI4PRO": "Mini 4 Pro",
			"MINI3PRO": "Mini 3 Pro",
			"MINI3":    "Mini 3",
			"MINI2":    "Mini 2",
			"MAVIC3":   "Mavic 3",
			"MAVIC2":   "Mavic 2",
			"AVATA2":   "Avata 2",
			"AVATA":    "Avata",
			"AIR3":     "Air 3",
			"AIR2S":    "Air 2S",
			"PHANTOM4": "Phantom 4",
			"INSPIRE3": "Inspire 3",
			"INSPIRE2": "Inspire 2",
			"MATRICE4": "Matrice 4",
			"MATRICE3": "Matrice 3",
			"AGRAS":    "Agras",
			"FLYCART":  "FlyCart",
			"FPV":      "FPV",
		},
	}

	sf.SSIDPatterns = []struct {
		Pattern      string `yaml:"pattern"`
		Manufacturer string `yaml:"manufacturer"`
		Model        string `yaml:"model"`
		IsController bool   `yaml:"is_controller"`
	}{
		{Pattern: `^DJI[-_ ]RC[N0-9]?[-_ ]`, Manufacturer: "DJI", IsController: true},
		{Pattern: `^DJI[-_ ]`, Manufacturer: "DJI"},
		{Pattern: `^TELLO[-_]?`, Manufacturer: "DJI", Model: "Tello"},
		{Pattern: `^MAVIC`, Manufacturer: "DJI", Model: "Mavic"},
		{Pattern: `^PHANTOM`, Manufacturer: "DJI", Model: "Phantom"},
		{Pattern: `^INSPIRE`, Manufacturer: "DJI", Model: "Inspire"},
		{Pattern: `^MATRICE`, Manufacturer: "DJI", Model: "Matrice"},
		{Pattern: `^AGRAS`, Manufacturer: "DJI", Model: "Agras"},
		{Pattern: `^FLYCART`, Manufacturer: "DJI", Model: "FlyCart"},
		{Pattern: `^AVATA`, Manufacturer: "DJI", Model: "Avata"},
		{Pattern: `^ANAFI[-_]?THERMAL`, Manufacturer: "Parrot", Model: "Anafi Thermal"},
		{Pattern: `^ANAFI[-_]?USA`, Manufacturer: "Parrot", Model: "Anafi USA"},
		{Pattern: `^ANAFI[-_]?AI`, Manufacturer: "Parrot", Model: "Anafi Ai"},
		{Pattern: `^ANAFI`, Manufacturer: "Parrot", Model: "Anafi"},
		{Pattern: `^PARROT`, Manufacturer: "Parrot"},
		{Pattern: `^DISCO`, Manufacturer: "Parrot", Model: "Disco"},
		{Pattern: `^BEBOP`, Manufacturer: "Parrot", Model: "Bebop"},
		{Pattern: `SKYCONTROLLER`, Manufacturer: "Parrot", IsController: true},
		{Pattern: `^AUTEL`, Manufacturer: "Autel Robotics"},
		{Pattern: `^EVO[-_ ]`, Manufacturer: "Autel Robotics", Model: "EVO"},
		{Pattern: `^DRAGONFISH`, Manufacturer: "Autel Robotics", Model: "Dragonfish"},
		{Pattern: `^SKYDIO`, Manufacturer: "Skydio"},
		{Pattern: `^X10D?\b`, Manufacturer: "Skydio", Model: "X10"},
		{Pattern: `^YUNEEC`, Manufacturer: "Yuneec"},
		{Pattern: `^TYPHOON`, Manufacturer: "Yuneec", Model: "Typhoon"},
		{Pattern: `^MANTIS`, Manufacturer: "Yuneec", Model: "Mantis"},
		{Pattern: `^BREEZE`, Manufacturer: "Yuneec", Model: "Breeze"},
		{Pattern: `^H520`, Manufacturer: "Yuneec", Model: "H520"},
		{Pattern: `^FIMI`, Manufacturer: "FIMI"},
		{Pattern: `^POWEREGG`, Manufacturer: "PowerVision", Model: "PowerEgg"},
		{Pattern: `^HUBSAN`, Manufacturer: "Hubsan"},
		{Pattern: `^BETAFPV`, Manufacturer: "BetaFPV"},
		{Pattern: `^WALKSNAIL`, Manufacturer: "Walksnail"},
		{Pattern: `^CADDX`, Manufacturer: "Caddx"},
		{Pattern: `^GEPRC`, Manufacturer: "GEPRC"},
		{Pattern: `^DIATONE`, Manufacturer: "Diatone"},
		{Pattern: `^FLYWOO`, Manufacturer: "Flywoo"},
		{Pattern: `^HAPPYMODEL`, Manufacturer: "HappyModel"},
		{Pattern: `^SPEEDYBEE`, Manufacturer: "SpeedyBee"},
		{Pattern: `^EACHINE`, Manufacturer: "Eachine"},
		{Pattern: `^EMAX`, Manufacturer: "EMAX"},
		{Pattern: `^TINYHAWK`, Manufacturer: "Eachine", Model: "TinyHawk"},
		{Pattern: `^HDZERO`, Manufacturer: "HDZero"},
		{Pattern: `^FATSHARK`, Manufacturer: "Fatshark"},
		{Pattern: `^TBS[-_ ]`, Manufacturer: "Team BlackSheep"},
		{Pattern: `^POTENSIC`, Manufacturer: "Potensic"},
		{Pattern: `^RUKO`, Manufacturer: "Ruko"},
		{Pattern: `^SJRC`, Manufacturer: "SJRC"},
		{Pattern: `^MJX`, Manufacturer: "MJX"},
		{Pattern: `^JJRC`, Manufacturer: "JJRC"},
		{Pattern: `^SYMA`, Manufacturer: "Syma"},
		{Pattern: `^SNAPTAIN`, Manufacturer: "Snaptain"},
		{Pattern: `^CONTIXO`, Manufacturer: "Contixo"},
		{Pattern: `^FORCE1`, Manufacturer: "Force1"},
		{Pattern: `^DEERC`, Manufacturer: "DEERC"},
		{Pattern: `^SIMREX`, Manufacturer: "SIMREX"},
		{Pattern: `^EHANG`, Manufacturer: "EHang"},
		{Pattern: `^MATTERNET`, Manufacturer: "Matternet"},
		{Pattern: `^ZIPLINE`, Manufacturer: "Zipline"},
		{Pattern: `^WINGTRA`, Manufacturer: "Wingtra"},
		{Pattern: `^SENSEFLY`, Manufacturer: "senseFly"},
		{Pattern: `^EBEE`, Manufacturer: "senseFly", Model: "eBee"},
		{Pattern: `^PRECISIONHAWK`, Manufacturer: "PrecisionHawk"},
		{Pattern: `^FREEFLY`, Manufacturer: "Freefly"},
		{Pattern: `^MODALAI`, Manufacturer: "ModalAI"},
		{Pattern: `^VOXL`, Manufacturer: "ModalAI", Model: "VOXL"},
		{Pattern: `^INSPIREDFLIGHT`, Manufacturer: "Inspired Flight"},
		{Pattern: `^IF(750|800|1200)\b`, Manufacturer: "Inspired Flight"},
		{Pattern: `^WINGCOPTER`, Manufacturer: "Wingcopter"},
		{Pattern: `^ARDUPILOT`, Manufacturer: "ArduPilot"},
		{Pattern: `^PX4[-_ ]`, Manufacturer: "PX4"},
		{Pattern: `^BLACKHORNET`, Manufacturer: "FLIR", Model: "Black Hornet"},
		{Pattern: `^ESP-DRONE`, Manufacturer: "ESP-Drone"},
		{Pattern: `^WALKERA`, Manufacturer: "Walkera"},
		{Pattern: `^ZEROTECH`, Manufacturer: "ZeroTech"},
		{Pattern: `^DOBBY`, Manufacturer: "ZeroTech", Model: "Dobby"},
		{Pattern: `^WINGSLAND`, Manufacturer: "Wingsland"},
		{Pattern: `^XDYNAMICS`, Manufacturer: "XDynamics"},
		{Pattern: `^HERELINK`, Manufacturer: "CubePilot", Model: "Herelink", IsController: true},
		{Pattern: `^RID-`, Manufacturer: "Unknown", Model: "RemoteID broadcast"},
		{Pattern: `^DEFAULT-SSID`, Manufacturer: "Unknown", Model: "Unconfigured RemoteID"},
	}

	return sf
}
