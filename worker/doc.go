// Package worker validates batches of HL7 v2 messages in parallel.
//
// Every message is validated independently: each job gets its own cursor
// and output tree, and results are returned in input order whatever order
// the workers finish in.
//
// Example usage:
//
//	v, _ := validator.New(validator.WithSchemaDir("schema/v2.4"))
//	bv := worker.NewBatchValidator(v.Validate, 4)
//
//	batch, err := bv.ValidateBatch(ctx, []worker.Job{
//	    {Name: "adt.hl7", Data: adt},
//	    {Name: "oru.hl7", Data: oru},
//	})
//	if err != nil {
//	    // schema error, batch stopped
//	}
//	for _, r := range batch.Results {
//	    if r.Error != nil {
//	        // malformed message
//	    }
//	    // r.Result holds the issues and the v2.xml document
//	}
package worker
