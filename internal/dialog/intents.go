package dialog

// Intent names produced by the classifier model
const (
	IntentNone                  = "None"
	IntentGreeting              = "Greeting"
	IntentGetName               = "GetName"
	IntentGetChiefComplaint     = "GetChiefComplaint"
	IntentGetHousing            = "GetHousing"
	IntentGetDiet               = "GetDiet"
	IntentGetExercise           = "GetExercise"
	IntentGetOccupation         = "GetOccupation"
	IntentGetSexualHistory      = "GetSexualHistory"
	IntentGetGynecologicHistory = "GetGynecologicHistory"

	IntentRecognizerDisease    = "RecognizerDisease"
	IntentRecognizerSurgery    = "RecognizerSurgery"
	IntentRecognizerMedication = "RecognizerMedication"
	IntentRecognizerAllergy    = "RecognizerAllergy"
	IntentRecognizerSubstance  = "RecognizerSubstance"
	IntentRecognizerTravel     = "RecognizerTravel"
	IntentRecognizerSymptom    = "RecognizerSymptom"
	IntentRecognizerFamily     = "RecognizerFamily"

	IntentGetAge           = "GetAge"
	IntentGetGender        = "GetGender"
	IntentGetCategory      = "GetCategory"
	IntentGetComplications = "GetComplications"
	IntentGetDisease       = "GetDisease"
	IntentGetExposure      = "GetExposure"
	IntentGetIndication    = "GetIndication"
	IntentGetLocation      = "GetLocation"
	IntentGetQuantity      = "GetQuantity"
	IntentGetTime          = "GetTime"
	IntentGetTreatment     = "GetTreatment"

	IntentGetMedications   = "GetMedications"
	IntentGetAllergies     = "GetAllergies"
	IntentGetSurgeries     = "GetSurgeries"
	IntentGetFamilyHistory = "GetFamilyHistory"
	IntentGetSubstances    = "GetSubstances"
	IntentGetTravel        = "GetTravel"

	IntentGetModifyingFactors   = "GetModifyingFactors"
	IntentGetPrecipitant        = "GetPrecipitant"
	IntentGetPreviousOccurrence = "GetPreviousOccurrence"
	IntentGetProgression        = "GetProgression"
	IntentGetSeverity           = "GetSeverity"
	IntentGetAssociatedSymptoms = "GetAssociatedSymptoms"
	IntentGetDuration           = "GetDuration"
)
