package complaint

// SeedComplaints returns the demo records a fresh installation starts with.
func SeedComplaints() []Complaint {
	return []Complaint{
		{
			ID:              "1",
			ComplaintNumber: "1023",
			CustomerName:    "Ahmed Ali",
			PhoneNumber:     "0300-1234567",
			Address:         "Street 5, Defense, Karachi",
			ProductType:     ProductAC,
			ModelNumber:     "INV-12K",
			SerialNumber:    "SN889911",
			Date:            "2023-10-25",
			Status:          StatusPending,
			Type:            CaseWarranty,
			ReopenCount:     0,
		},
		{
			ID:              "2",
			ComplaintNumber: "1024",
			CustomerName:    "Sara Khan",
			PhoneNumber:     "0312-7654321",
			Address:         "Gulshan, Block 4, Lahore",
			ProductType:     ProductRefrigerator,
			ModelNumber:     "REF-GTX",
			SerialNumber:    "SN442200",
			Date:            "2023-10-24",
			Status:          StatusInProgress,
			Type:            CaseRevenue,
			ReopenCount:     0,
		},
	}
}
