package assetapi

// Reference enumeration rows, field names exactly as the API returns them.
// Note the two id/name conventions: EnumValue/EnumName for lock types and
// notice/lockup frequencies, FrequencyId/FrequencyName for redemption and
// investor-gate frequencies.

// AssetType is a row from the asset-type dropdown.
type AssetType struct {
	AssetTypeID   int    `json:"AssetTypeId"`
	AssetTypeName string `json:"AssetTypeName"`
}

// Strategy is a row from the strategy dropdown.
type Strategy struct {
	ClassificationID    int    `json:"ClassificationId"`
	ClassificationValue string `json:"ClassificationValue"`
}

// EnumEntry is a row from an EnumValue/EnumName dropdown (lock types,
// notice frequencies, lockup frequencies).
type EnumEntry struct {
	EnumValue int    `json:"EnumValue"`
	EnumName  string `json:"EnumName"`
}

// Frequency is a row from a FrequencyId/FrequencyName dropdown (redemption
// and investor-gate frequencies).
type Frequency struct {
	FrequencyID   int    `json:"FrequencyId"`
	FrequencyName string `json:"FrequencyName"`
}

// CompanyType is a service-provider company category.
type CompanyType struct {
	CompanyTypeID int    `json:"CompanyTypeID"`
	CompanyType   string `json:"CompanyType"`
}

// Company is a service-provider company.
type Company struct {
	CompanyID   int    `json:"CompanyID"`
	CompanyName string `json:"CompanyName"`
}

// ShareClassInfo is a row from the created-share-class listing, used to
// patch liquidity payloads by name.
type ShareClassInfo struct {
	ShareClassID   int    `json:"ShareClassId"`
	ShareClassName string `json:"ShareClassName"`
}
